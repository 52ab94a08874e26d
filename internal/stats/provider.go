package stats

import "context"

// Provider is the upstream statistics contract. Both calls may fail with a
// network or timeout error; callers treat the payload shape as opaque and
// receive normalized records.
type Provider interface {
	// FetchRosterBasic returns the current player roster.
	FetchRosterBasic(ctx context.Context) ([]Player, error)

	// FetchGameStatsByDate returns every player's stat lines for the games
	// played on the given calendar day (DayFormat).
	FetchGameStatsByDate(ctx context.Context, date string) ([]StatRecord, error)
}
