package stats

import "errors"

var (
	// ErrUpstreamUnavailable indicates the stats provider was unreachable
	// or returned an error. It triggers the cache fallback chain.
	ErrUpstreamUnavailable = errors.New("upstream stats provider unavailable")

	// ErrNoData indicates the fallback chain was exhausted with nothing to
	// return. Callers never receive an empty success.
	ErrNoData = errors.New("no stat data available")
)
