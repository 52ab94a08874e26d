package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/hoopcast/hoopcast/internal/metrics"
)

const (
	// DefaultTTL is how long a cached record is served without refetching.
	DefaultTTL = 24 * time.Hour

	defaultFetchConcurrency = 3
	defaultDayTimeout       = 5 * time.Second
)

// CacheConfig tunes the cache. Zero values fall back to defaults.
type CacheConfig struct {
	TTL              time.Duration
	FetchConcurrency int
	DayTimeout       time.Duration
}

// Cache is a time-boxed cache in front of the upstream provider. Range
// queries fetch one calendar day at a time with bounded concurrency; each
// day times out independently so one hanging request never blocks the rest.
type Cache struct {
	provider   Provider
	logger     *log.Logger
	clock      quartz.Clock
	ttl        time.Duration
	fetchLimit int
	dayTimeout time.Duration

	mu     sync.RWMutex
	days   map[string]*dayEntry
	roster *rosterEntry
}

type dayEntry struct {
	records   []StatRecord
	fetchedAt time.Time
}

type rosterEntry struct {
	players   []Player
	fetchedAt time.Time
}

// NewCache creates a cache over the given provider.
func NewCache(provider Provider, logger *log.Logger, clock quartz.Clock, cfg CacheConfig) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = defaultFetchConcurrency
	}
	if cfg.DayTimeout <= 0 {
		cfg.DayTimeout = defaultDayTimeout
	}
	return &Cache{
		provider:   provider,
		logger:     logger.WithPrefix("stats"),
		clock:      clock,
		ttl:        cfg.TTL,
		fetchLimit: cfg.FetchConcurrency,
		dayTimeout: cfg.DayTimeout,
		days:       make(map[string]*dayEntry),
	}
}

// GetPlayerGames returns the player's normalized stat lines for every
// calendar day in the inclusive [from, to] range, in chronological order.
// A failed day is logged and skipped; only an empty overall result is an
// error (ErrNoData). Overlapping ranges are safe to re-request: fresh days
// are served from cache without touching the network.
func (c *Cache) GetPlayerGames(ctx context.Context, playerID string, from, to time.Time) ([]StatRecord, error) {
	from = midnight(from)
	to = midnight(to)
	if from.After(to) {
		from, to = to, from
	}

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	results := make([][]StatRecord, len(days))
	var failed int64
	var failedMu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(c.fetchLimit)
	for i, day := range days {
		g.Go(func() error {
			records, ok := c.lookupDay(playerID, day)
			if ok {
				metrics.StatsCacheHits.Inc()
				results[i] = records
				return nil
			}
			metrics.StatsCacheMisses.Inc()

			fetched, err := c.fetchDay(ctx, playerID, day)
			if err != nil {
				// Partial results policy: record the failure, keep going.
				c.logger.Warn("Day fetch failed, skipping", "player", playerID, "date", day.Format(DayFormat), "error", err)
				metrics.UpstreamFailures.WithLabelValues("stats").Inc()
				failedMu.Lock()
				failed++
				failedMu.Unlock()
				return nil
			}
			results[i] = fetched
			return nil
		})
	}
	_ = g.Wait() // Workers never return errors; failures are per-day.

	var all []StatRecord
	for _, dayRecords := range results {
		all = append(all, dayRecords...)
	}

	if len(all) == 0 {
		if int(failed) == len(days) {
			return nil, fmt.Errorf("%w: every day in range failed", ErrNoData)
		}
		return nil, fmt.Errorf("%w: no qualifying records in range", ErrNoData)
	}
	return all, nil
}

// Roster returns the player roster, degrading from live data to the last
// successfully cached roster, and finally to the fixture dataset. The
// result always carries its source.
func (c *Cache) Roster(ctx context.Context) (RosterResult, error) {
	players, err := c.provider.FetchRosterBasic(ctx)
	if err == nil {
		c.mu.Lock()
		c.roster = &rosterEntry{players: players, fetchedAt: c.clock.Now()}
		c.mu.Unlock()
		return RosterResult{Players: players, Source: SourceLive}, nil
	}

	c.logger.Warn("Roster fetch failed, falling back", "error", err)
	metrics.UpstreamFailures.WithLabelValues("roster").Inc()

	c.mu.RLock()
	cached := c.roster
	c.mu.RUnlock()
	if cached != nil {
		return RosterResult{Players: cached.players, Source: SourceCached}, nil
	}

	return RosterResult{Players: FixtureRoster(), Source: SourceFixture}, nil
}

// NeedsRefresh reports whether the cache is empty or its newest record has
// outlived the TTL.
func (c *Cache) NeedsRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var newest time.Time
	for _, entry := range c.days {
		if entry.fetchedAt.After(newest) {
			newest = entry.fetchedAt
		}
	}
	if newest.IsZero() {
		return true
	}
	return c.clock.Since(newest) > c.ttl
}

// lookupDay returns the cached records for (playerID, day) if they are
// younger than the TTL.
func (c *Cache) lookupDay(playerID string, day time.Time) ([]StatRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.days[cacheKey(playerID, day)]
	if !ok {
		return nil, false
	}
	if c.clock.Since(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	return entry.records, true
}

// fetchDay queries the upstream for one day with an independent timeout,
// filters to the player, and supersedes the cached entry.
func (c *Cache) fetchDay(ctx context.Context, playerID string, day time.Time) ([]StatRecord, error) {
	dayCtx, cancel := context.WithTimeout(ctx, c.dayTimeout)
	defer cancel()

	records, err := c.provider.FetchGameStatsByDate(dayCtx, day.Format(DayFormat))
	if err != nil {
		return nil, err
	}

	var filtered []StatRecord
	for _, r := range records {
		if r.PlayerID == playerID {
			filtered = append(filtered, r)
		}
	}

	c.mu.Lock()
	c.days[cacheKey(playerID, day)] = &dayEntry{records: filtered, fetchedAt: c.clock.Now()}
	c.mu.Unlock()

	return filtered, nil
}

func cacheKey(playerID string, day time.Time) string {
	return playerID + "|" + day.Format(DayFormat)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
