// Package rewrite is the detection-and-replacement core: it decides
// whether a page fragment shows a tracked video, whether its title still
// needs substituting, and performs the substitution exactly once per
// fragment-instance.
//
// Everything here fails soft. Missing identifiers, missing mapping
// entries, missing elements and already-correct titles are the steady
// state of a third-party page under active redesign — they skip silently,
// they never error. Repeated scans converge to the same terminal page
// state.
package rewrite

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/hazyhaar/retitle/internal/dom"
	"github.com/hazyhaar/retitle/internal/titles"
	"github.com/hazyhaar/retitle/internal/videoid"
)

// Metadata attributes left on mutated elements. They round-trip through
// DOM snapshots, so a rescan of an unchanged page can tell a clean title
// from an untouched one.
const (
	// AttrOriginal preserves the text a title element carried before the
	// first substitution.
	AttrOriginal = "data-retitle-original"
	// AttrReplaced marks a substituted title element.
	AttrReplaced = "data-retitle-replaced"
	// AttrReplacedID records which identifier the watch-page title was
	// last substituted for. The watch page reuses one DOM subtree across
	// in-page navigations to different videos, so a boolean would block
	// a legitimate re-substitution; the identifier does not.
	AttrReplacedID = "data-retitle-id"
)

// Reporter receives fire-and-forget replacement notifications. Delivery
// failure must not affect engine state, so there is no error return.
type Reporter interface {
	ReportReplacement(ctx context.Context, n int64)
}

// Config assembles the engine's behaviour knobs.
type Config struct {
	Channel  ChannelProfile
	Patterns Patterns

	// PageShortcut enables the classifier's ambient-URL signal: on the
	// channel's own pages every fragment is taken as the channel's.
	PageShortcut bool
	// GateLookup additionally requires the classifier to accept a
	// fragment before the mapping lookup counts. Off by default: the
	// mapping is pre-filtered to the tracked channel upstream, so key
	// presence alone is proof of membership.
	GateLookup bool

	// RequireVisible skips fragments the Visible probe rejects, avoiding
	// tagging of off-screen virtualised nodes the host may silently
	// repurpose. Ignored when Visible is nil.
	RequireVisible bool
	Visible        func(*html.Node) bool

	Logger *slog.Logger
}

// Engine is the explicit context object owning all mutable scan state:
// mapping, settings mirror, processing memory and session counters.
// Mapping and settings are swapped by atomic reference, never mutated in
// place, so pushes from the bridge goroutine cannot be observed
// mid-update.
type Engine struct {
	cfg        Config
	classifier *Classifier
	locator    *Locator
	logger     *slog.Logger

	mapping atomic.Pointer[titles.Mapping]
	enabled atomic.Bool

	memory   *processingMemory
	replaced atomic.Int64 // this session only; the durable total lives with the reporter

	reporter Reporter
}

// New creates an Engine. The engine starts disabled with no mapping; it
// stays inert until the collaborator load succeeds and pushes both.
func New(cfg Config, reporter Reporter) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Patterns = cfg.Patterns.merged()

	return &Engine{
		cfg: cfg,
		classifier: &Classifier{
			Profile:      cfg.Channel,
			Patterns:     cfg.Patterns.Attribution,
			PageShortcut: cfg.PageShortcut,
		},
		locator:  &Locator{Patterns: cfg.Patterns},
		logger:   cfg.Logger,
		memory:   newProcessingMemory(),
		reporter: reporter,
	}
}

// SetMapping swaps in a new title mapping wholesale.
func (e *Engine) SetMapping(m titles.Mapping) {
	e.mapping.Store(&m)
}

// SetEnabled mirrors the user flag. When false, scans are no-ops.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

// Enabled reports the mirrored user flag.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// ResetMemory drops all fragment associations. Called on navigation:
// post-navigation fragment content is unrelated to pre-navigation state
// even when some nodes survive.
func (e *Engine) ResetMemory() {
	e.memory.clear()
}

// ReplacedThisSession returns the session replacement counter.
func (e *Engine) ReplacedThisSession() int64 {
	return e.replaced.Load()
}

// ScanPage enumerates all candidate fragments plus the watch-page title
// and processes each. Safe to call repeatedly: a second scan of an
// unchanged page changes nothing.
func (e *Engine) ScanPage(ctx context.Context, page *dom.Page) {
	if page == nil || !e.enabled.Load() {
		return
	}
	m := e.mapping.Load()
	if m == nil {
		return
	}

	seen := make(map[*html.Node]struct{})
	var fragments, replaced int
	for _, sel := range e.cfg.Patterns.Containers {
		for _, frag := range page.QueryAll(sel) {
			if _, dup := seen[frag]; dup {
				continue
			}
			seen[frag] = struct{}{}
			fragments++
			if e.ProcessFragment(ctx, page, frag) {
				replaced++
			}
		}
	}

	if e.ProcessWatchPageTitle(ctx, page) {
		replaced++
	}

	e.logger.Debug("scanner: pass complete",
		"url", page.URL, "fragments", fragments, "replaced", replaced)
}

// ProcessFragment runs the substitution decision for one video card.
// It returns true only when it mutated the title this call.
func (e *Engine) ProcessFragment(ctx context.Context, page *dom.Page, frag *html.Node) bool {
	m := e.mapping.Load()
	if m == nil || frag == nil {
		return false
	}

	href, ok := e.locator.PermalinkHref(frag)
	if !ok {
		return false
	}
	id := videoid.FromURL(href)
	if id == "" {
		return false
	}

	if e.cfg.GateLookup && !e.classifier.BelongsToChannel(page.URL, frag) {
		return false
	}

	rec, ok := m.Lookup(id)
	if !ok {
		return false // not a tracked video
	}

	if last, ok := e.memory.lookup(frag); ok && last == id {
		return false // unchanged since last processed
	}

	if e.cfg.RequireVisible && e.cfg.Visible != nil && !e.cfg.Visible(frag) {
		return false
	}

	title := e.locator.TitleElement(frag)
	if title == nil {
		return false
	}

	current := dom.Text(title)
	if current == rec.CleanTitle {
		// Already correct (earlier scan, or snapshot round trip). Still
		// worth remembering so the next scan skips cheaply.
		e.memory.remember(frag, id)
		return false
	}

	if !dom.HasAttr(title, AttrOriginal) {
		page.SetAttr(title, AttrOriginal, current)
	}
	page.SetText(title, rec.CleanTitle)
	page.SetAttr(title, AttrReplaced, "true")
	e.memory.remember(frag, id)

	e.replaced.Add(1)
	if e.reporter != nil {
		e.reporter.ReportReplacement(ctx, 1)
	}

	e.logger.Debug("engine: title replaced",
		"video_id", id, "clean_title", rec.CleanTitle)
	return true
}

// ProcessWatchPageTitle substitutes the single now-playing title. The
// identifier comes from the ambient page URL, and idempotence is keyed
// off AttrReplacedID rather than processing memory, because the element
// survives in-page navigations to other videos.
func (e *Engine) ProcessWatchPageTitle(ctx context.Context, page *dom.Page) bool {
	m := e.mapping.Load()
	if m == nil {
		return false
	}

	id := videoid.FromURL(page.URL)
	if id == "" {
		return false
	}
	rec, ok := m.Lookup(id)
	if !ok {
		return false
	}

	title := e.locator.WatchTitleElement(page.Root())
	if title == nil {
		return false
	}

	if dom.Attr(title, AttrReplacedID) == id {
		return false // already substituted for this exact video
	}

	current := dom.Text(title)
	if current == rec.CleanTitle {
		page.SetAttr(title, AttrReplacedID, id)
		return false
	}

	// Unlike cards, the original is overwritten per video: the element is
	// reused, so "original" means the text shown for this identifier.
	page.SetAttr(title, AttrOriginal, current)
	page.SetText(title, rec.CleanTitle)
	page.SetAttr(title, AttrReplaced, "true")
	page.SetAttr(title, AttrReplacedID, id)

	e.replaced.Add(1)
	if e.reporter != nil {
		e.reporter.ReportReplacement(ctx, 1)
	}

	e.logger.Debug("engine: watch title replaced",
		"video_id", id, "clean_title", rec.CleanTitle)
	return true
}
