package watch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/retitle/internal/browser"
	"github.com/hazyhaar/retitle/internal/dom"
	"github.com/hazyhaar/retitle/internal/rewrite"
)

// Config for creating a Watcher.
type Config struct {
	// Coalescing windows. Zero values take the defaults (100ms
	// mutation, 500ms navigation settle, 200ms scroll).
	MutationDebounce time.Duration
	NavigationSettle time.Duration
	ScrollDebounce   time.Duration

	// RequireVisible mirrors the engine's visibility gating; it arms
	// rescans on scroll so newly exposed cards get processed.
	RequireVisible bool

	// ScanTimeout bounds one snapshot-scan-apply cycle. Default: 10s.
	ScanTimeout time.Duration

	Logger *slog.Logger
}

// Watcher runs the scan loop for one tab: observer signals are
// debounced by the scheduler, each scan snapshots the live DOM, runs
// the rewrite engine over the parse tree, and replays the journaled
// edits back into the page.
type Watcher struct {
	tab    *browser.Tab
	engine *rewrite.Engine
	sched  *scheduler
	obs    *observer
	logger *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	scanTimeout time.Duration
}

// New creates a Watcher over an already-open tab.
func New(tab *browser.Tab, engine *rewrite.Engine, cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 10 * time.Second
	}

	w := &Watcher{
		tab:         tab,
		engine:      engine,
		logger:      cfg.Logger,
		scanTimeout: cfg.ScanTimeout,
	}
	w.sched = newScheduler(schedulerConfig{
		MutationWindow:   cfg.MutationDebounce,
		NavigationSettle: cfg.NavigationSettle,
		ScrollWindow:     cfg.ScrollDebounce,
		ScrollEnabled:    cfg.RequireVisible,
	}, w.scan, w.onNavigationReset)
	w.obs = newObserver(tab, w.sched, func(url string) {
		tab.PageURL = url
	}, cfg.Logger)
	return w
}

// Start installs the observer and runs the initial scan.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := w.obs.start(w.ctx); err != nil {
		return fmt.Errorf("watch: start observer: %w", err)
	}

	// The page is already loaded; cover everything rendered before the
	// observer was in place.
	w.scan()
	return nil
}

// Stop cancels pending scans and detaches the observer.
func (w *Watcher) Stop() {
	w.sched.Stop()
	w.obs.stop()
	if w.cancel != nil {
		w.cancel()
	}
}

// Rescan forces an immediate scan, outside the debounce windows.
func (w *Watcher) Rescan() {
	w.scan()
}

// onNavigationReset runs synchronously when a navigation signal
// arrives. Parse-tree associations from the previous view must not
// leak into the next one.
func (w *Watcher) onNavigationReset() {
	w.engine.ResetMemory()
}

// scan runs one snapshot-scan-apply cycle.
func (w *Watcher) scan() {
	if w.ctx == nil || w.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(w.ctx, w.scanTimeout)
	defer cancel()

	start := time.Now()

	url, err := w.tab.CurrentURL(ctx)
	if err != nil {
		w.logger.Error("watch: read URL", "error", err)
		return
	}

	snapshot, err := w.tab.Snapshot(ctx)
	if err != nil {
		w.logger.Error("watch: snapshot", "error", err)
		return
	}

	page, err := dom.Parse(bytes.NewReader(snapshot), url)
	if err != nil {
		w.logger.Error("watch: parse snapshot", "error", err)
		return
	}

	w.engine.ScanPage(ctx, page)

	edits := page.TakeEdits()
	if len(edits) == 0 {
		w.logger.Debug("watch: scan clean", "url", url,
			"took", time.Since(start))
		return
	}

	applied, err := w.tab.Apply(ctx, edits)
	if err != nil {
		w.logger.Error("watch: apply edits", "error", err, "edits", len(edits))
		return
	}

	w.logger.Info("watch: scan applied",
		"url", url,
		"edits", len(edits),
		"applied", applied,
		"took", time.Since(start))
}
