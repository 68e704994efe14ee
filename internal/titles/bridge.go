package titles

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Bridge connects the durable store and the remote feed to the rewrite
// engine. It owns the current mapping reference; the engine only ever
// receives wholesale-swapped copies, never a map the bridge still writes.
type Bridge struct {
	store   *Store
	fetcher *Fetcher
	logger  *slog.Logger

	refreshInterval time.Duration

	mu      sync.Mutex
	current Mapping

	// OnMapping is invoked with a freshly built mapping and the changed
	// keys that produced it. OnSettings is invoked on settings pushes.
	// Both must be set before Load/Run and are called from the bridge
	// goroutine.
	OnMapping  func(Mapping, []Change)
	OnSettings func(Settings)
}

// NewBridge creates a Bridge. fetcher may be nil when no feed is
// configured; the bridge then serves the cached mapping only.
func NewBridge(store *Store, fetcher *Fetcher, refreshInterval time.Duration, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if refreshInterval <= 0 {
		refreshInterval = time.Hour
	}
	return &Bridge{
		store:           store,
		fetcher:         fetcher,
		refreshInterval: refreshInterval,
		logger:          logger,
	}
}

// Load performs the startup read: cached mapping plus the enabled flag.
// Any error here must leave the core inert — the caller is expected not
// to start scanning on failure rather than scanning with an empty mapping
// mistaken for "no tracked videos exist".
func (b *Bridge) Load(ctx context.Context) (Mapping, Settings, error) {
	m, err := b.store.AllTitles(ctx)
	if err != nil {
		return nil, Settings{}, fmt.Errorf("bridge: load titles: %w", err)
	}
	enabled, err := b.store.Enabled(ctx)
	if err != nil {
		return nil, Settings{}, fmt.Errorf("bridge: load settings: %w", err)
	}

	b.mu.Lock()
	b.current = m
	b.mu.Unlock()

	b.logger.Info("bridge: loaded cache", "titles", len(m), "enabled", enabled)
	return m, Settings{Enabled: enabled}, nil
}

// Run refreshes the mapping from the remote feed until ctx is cancelled.
// The first refresh happens immediately so a stale cache does not linger
// for a full interval.
func (b *Bridge) Run(ctx context.Context) {
	if b.fetcher == nil {
		b.logger.Info("bridge: no feed configured, serving cache only")
		return
	}

	b.refresh(ctx)

	ticker := time.NewTicker(b.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge: stopped")
			return
		case <-ticker.C:
			b.refresh(ctx)
		}
	}
}

// refresh fetches the feed, persists the delta, and pushes the changed
// keys. Fetch failures keep the previous mapping — stale beats empty.
func (b *Bridge) refresh(ctx context.Context) {
	fresh, err := b.fetcher.Fetch(ctx)
	if err != nil {
		b.logger.Warn("bridge: refresh failed, keeping cached mapping", "error", err)
		return
	}

	b.mu.Lock()
	changes := Diff(b.current, fresh)
	if len(changes) == 0 {
		b.mu.Unlock()
		b.logger.Debug("bridge: feed unchanged")
		return
	}
	next := b.current.Apply(changes)
	b.current = next
	b.mu.Unlock()

	var added, removed Mapping
	var removedIDs []string
	added = make(Mapping)
	removed = make(Mapping)
	for _, c := range changes {
		if c.New != nil {
			added[c.ID] = *c.New
		} else {
			removed[c.ID] = Record{}
			removedIDs = append(removedIDs, c.ID)
		}
	}

	if err := b.store.UpsertTitles(ctx, added); err != nil {
		b.logger.Error("bridge: persist titles failed", "error", err)
	}
	if len(removedIDs) > 0 {
		if err := b.store.DeleteTitles(ctx, removedIDs); err != nil {
			b.logger.Error("bridge: delete titles failed", "error", err)
		}
	}

	b.logger.Info("bridge: mapping updated",
		"changed", len(changes), "total", len(next))

	if b.OnMapping != nil {
		b.OnMapping(next, changes)
	}
}

// Current returns the mapping the bridge last published.
func (b *Bridge) Current() Mapping {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// SetEnabled persists the user flag and pushes the settings change.
func (b *Bridge) SetEnabled(ctx context.Context, enabled bool) error {
	if err := b.store.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	if b.OnSettings != nil {
		b.OnSettings(Settings{Enabled: enabled})
	}
	b.logger.Info("bridge: settings pushed", "enabled", enabled)
	return nil
}

// Refresh triggers one immediate feed refresh (control surface hook).
func (b *Bridge) Refresh(ctx context.Context) {
	if b.fetcher == nil {
		return
	}
	b.refresh(ctx)
}

// TotalReplacements reads the durable all-time counter.
func (b *Bridge) TotalReplacements(ctx context.Context) (int64, error) {
	return b.store.TotalReplacements(ctx)
}

// ReportReplacement adds n to the durable all-time counter. Delivery is
// fire-and-forget: failures are logged and never affect caller state.
func (b *Bridge) ReportReplacement(ctx context.Context, n int64) {
	if err := b.store.AddReplacements(ctx, n); err != nil {
		b.logger.Warn("bridge: report replacement failed", "error", err)
	}
}
