package rewrite

import (
	"context"
	"sync/atomic"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/retitle/internal/dom"
	"github.com/hazyhaar/retitle/internal/titles"
)

const cardPage = `<html><body>
<ytd-rich-item-renderer>
  <a id="video-title-link" href="/watch?v=abcEFghiJKL">
    <yt-formatted-string id="video-title">YOU WON'T BELIEVE THIS BLUNDER!!!</yt-formatted-string>
  </a>
  <ytd-channel-name><a href="/@GothamChess">GothamChess</a></ytd-channel-name>
</ytd-rich-item-renderer>
</body></html>`

const watchPage = `<html><body>
<ytd-watch-metadata>
  <h1 class="ytd-watch-metadata"><yt-formatted-string>INSANE GAME?!?! (not clickbait)</yt-formatted-string></h1>
</ytd-watch-metadata>
</body></html>`

func testProfile() ChannelProfile {
	return ChannelProfile{
		Handle:       "@GothamChess",
		ID:           "UCQHX6ViZmPsWiYSFAyS0a3Q",
		LegacySlug:   "GothamChess",
		NameVariants: []string{"GothamChess", "Gotham Chess"},
	}
}

// countReporter counts fire-and-forget notifications.
type countReporter struct{ n atomic.Int64 }

func (r *countReporter) ReportReplacement(_ context.Context, n int64) { r.n.Add(n) }

func newTestEngine(mapping titles.Mapping) (*Engine, *countReporter) {
	rep := &countReporter{}
	e := New(Config{Channel: testProfile(), PageShortcut: true}, rep)
	e.SetMapping(mapping)
	e.SetEnabled(true)
	return e, rep
}

func parsePage(t *testing.T, src, url string) *dom.Page {
	t.Helper()
	p, err := dom.ParseString(src, url)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return p
}

// hostSetText simulates the host page rewriting an element's text — a
// raw tree mutation that bypasses the engine's journal.
func hostSetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// hostSetAttr simulates the host page changing an attribute.
func hostSetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func TestScanPage_ReplacesTrackedCard(t *testing.T) {
	mapping := titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
	}
	e, rep := newTestEngine(mapping)
	page := parsePage(t, cardPage, "https://www.youtube.com/")

	e.ScanPage(context.Background(), page)

	title := page.Query("#video-title")
	if got := dom.Text(title); got != "Magnus Resigns After 3 Moves" {
		t.Errorf("title: got %q, want %q", got, "Magnus Resigns After 3 Moves")
	}
	if got := dom.Attr(title, AttrReplaced); got != "true" {
		t.Errorf("replaced flag: got %q, want %q", got, "true")
	}
	if got := dom.Attr(title, AttrOriginal); got != "YOU WON'T BELIEVE THIS BLUNDER!!!" {
		t.Errorf("original attr: got %q", got)
	}
	if got := e.ReplacedThisSession(); got != 1 {
		t.Errorf("session counter: got %d, want 1", got)
	}
	if got := rep.n.Load(); got != 1 {
		t.Errorf("reported replacements: got %d, want 1", got)
	}
	if len(page.Edits()) == 0 {
		t.Error("expected journaled edits for the live layer")
	}
}

func TestScanPage_UnmappedCardUntouched(t *testing.T) {
	e, rep := newTestEngine(titles.Mapping{
		"zzzzzzzzzzz": {CleanTitle: "Some Other Video"},
	})
	page := parsePage(t, cardPage, "https://www.youtube.com/")

	e.ScanPage(context.Background(), page)

	title := page.Query("#video-title")
	if got := dom.Text(title); got != "YOU WON'T BELIEVE THIS BLUNDER!!!" {
		t.Errorf("title changed for unmapped id: %q", got)
	}
	if dom.HasAttr(title, AttrReplaced) {
		t.Error("replaced flag set for unmapped id")
	}
	if e.ReplacedThisSession() != 0 || rep.n.Load() != 0 {
		t.Error("counter moved for unmapped id")
	}
}

func TestProcessFragment_Idempotent(t *testing.T) {
	e, rep := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
	})
	page := parsePage(t, cardPage, "https://www.youtube.com/")
	frag := page.Query("ytd-rich-item-renderer")

	ctx := context.Background()
	first := e.ProcessFragment(ctx, page, frag)
	second := e.ProcessFragment(ctx, page, frag)

	if !first || second {
		t.Errorf("ProcessFragment: got (%v, %v), want (true, false)", first, second)
	}
	if got := e.ReplacedThisSession(); got != 1 {
		t.Errorf("counter after double process: got %d, want 1", got)
	}
	if got := rep.n.Load(); got != 1 {
		t.Errorf("reports after double process: got %d, want 1", got)
	}
	if got := dom.Text(page.Query("#video-title")); got != "Magnus Resigns After 3 Moves" {
		t.Errorf("title after double process: %q", got)
	}
}

func TestScanPage_RepeatedScansConverge(t *testing.T) {
	e, _ := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
	})
	page := parsePage(t, cardPage, "https://www.youtube.com/")

	ctx := context.Background()
	for range 5 {
		e.ScanPage(ctx, page)
	}

	if got := e.ReplacedThisSession(); got != 1 {
		t.Errorf("counter after 5 scans: got %d, want 1", got)
	}
}

func TestProcessFragment_RecycledNode(t *testing.T) {
	e, _ := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
		"zyxWVutsRQP": {CleanTitle: "Hikaru Wins The Bullet Final"},
	})
	page := parsePage(t, cardPage, "https://www.youtube.com/")
	frag := page.Query("ytd-rich-item-renderer")
	ctx := context.Background()

	e.ProcessFragment(ctx, page, frag)

	// Host recycles the node for a different video: new permalink, new
	// clickbait text, old metadata attributes still attached.
	hostSetAttr(page.Query("a#video-title-link"), "href", "/watch?v=zyxWVutsRQP")
	hostSetText(page.Query("#video-title"), "HE DID WHAT IN BULLET??")

	if !e.ProcessFragment(ctx, page, frag) {
		t.Fatal("recycled fragment not re-substituted")
	}
	if got := dom.Text(page.Query("#video-title")); got != "Hikaru Wins The Bullet Final" {
		t.Errorf("recycled title: got %q", got)
	}
	if got := e.ReplacedThisSession(); got != 2 {
		t.Errorf("counter after recycle: got %d, want 2", got)
	}
}

func TestNavigationReset_NoDoubleCount(t *testing.T) {
	e, rep := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
	})
	page := parsePage(t, cardPage, "https://www.youtube.com/")
	ctx := context.Background()

	e.ScanPage(ctx, page)
	e.ResetMemory()
	if e.memory.size() != 0 {
		t.Fatal("ResetMemory left associations behind")
	}

	// Revisited view shows the same video again; the fragment must be
	// re-evaluated and land in the same state without another increment.
	e.ScanPage(ctx, page)

	if got := dom.Text(page.Query("#video-title")); got != "Magnus Resigns After 3 Moves" {
		t.Errorf("title after revisit: %q", got)
	}
	if got := e.ReplacedThisSession(); got != 1 {
		t.Errorf("counter after revisit: got %d, want 1", got)
	}
	if got := rep.n.Load(); got != 1 {
		t.Errorf("reports after revisit: got %d, want 1", got)
	}
}

func TestScanPage_DisabledIsNoOp(t *testing.T) {
	e, _ := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
	})
	e.SetEnabled(false)
	page := parsePage(t, cardPage, "https://www.youtube.com/")

	e.ScanPage(context.Background(), page)

	if got := dom.Text(page.Query("#video-title")); got != "YOU WON'T BELIEVE THIS BLUNDER!!!" {
		t.Errorf("disabled scan mutated title: %q", got)
	}
	if len(page.Edits()) != 0 {
		t.Error("disabled scan journaled edits")
	}
}

func TestScanPage_NoMappingStaysInert(t *testing.T) {
	rep := &countReporter{}
	e := New(Config{Channel: testProfile()}, rep)
	e.SetEnabled(true) // enabled but never given a mapping

	page := parsePage(t, cardPage, "https://www.youtube.com/")
	e.ScanPage(context.Background(), page)

	if got := dom.Text(page.Query("#video-title")); got != "YOU WON'T BELIEVE THIS BLUNDER!!!" {
		t.Errorf("inert engine mutated title: %q", got)
	}
}

func TestProcessFragment_VisibilityGate(t *testing.T) {
	visible := false
	rep := &countReporter{}
	e := New(Config{
		Channel:        testProfile(),
		RequireVisible: true,
		Visible:        func(*html.Node) bool { return visible },
	}, rep)
	e.SetMapping(titles.Mapping{"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"}})
	e.SetEnabled(true)

	page := parsePage(t, cardPage, "https://www.youtube.com/")
	frag := page.Query("ytd-rich-item-renderer")
	ctx := context.Background()

	if e.ProcessFragment(ctx, page, frag) {
		t.Error("off-screen fragment was mutated")
	}

	visible = true
	if !e.ProcessFragment(ctx, page, frag) {
		t.Error("visible fragment not mutated")
	}
}

func TestProcessWatchPageTitle_KeyedByIdentifier(t *testing.T) {
	e, rep := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
		"zyxWVutsRQP": {CleanTitle: "Hikaru Wins The Bullet Final"},
	})
	page := parsePage(t, watchPage, "https://www.youtube.com/watch?v=abcEFghiJKL")
	ctx := context.Background()

	if !e.ProcessWatchPageTitle(ctx, page) {
		t.Fatal("watch title not substituted")
	}
	title := page.Query("h1.ytd-watch-metadata yt-formatted-string")
	if got := dom.Text(title); got != "Magnus Resigns After 3 Moves" {
		t.Errorf("watch title: got %q", got)
	}
	if got := dom.Attr(title, AttrReplacedID); got != "abcEFghiJKL" {
		t.Errorf("replaced-for id: got %q", got)
	}

	// Same video again: no-op.
	if e.ProcessWatchPageTitle(ctx, page) {
		t.Error("watch title re-substituted for same id")
	}

	// In-page navigation to another video reuses the same subtree. The
	// id attribute, not a boolean, must permit the re-substitution.
	page.URL = "https://www.youtube.com/watch?v=zyxWVutsRQP"
	hostSetText(title, "THE GREATEST BULLET GAME EVER???")

	if !e.ProcessWatchPageTitle(ctx, page) {
		t.Fatal("watch title not re-substituted after in-page navigation")
	}
	if got := dom.Text(title); got != "Hikaru Wins The Bullet Final" {
		t.Errorf("watch title after navigation: got %q", got)
	}
	if got := dom.Attr(title, AttrReplacedID); got != "zyxWVutsRQP" {
		t.Errorf("replaced-for id after navigation: got %q", got)
	}
	if got := rep.n.Load(); got != 2 {
		t.Errorf("reports: got %d, want 2", got)
	}
}

func TestProcessWatchPageTitle_NonWatchURL(t *testing.T) {
	e, _ := newTestEngine(titles.Mapping{
		"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"},
	})
	page := parsePage(t, watchPage, "https://www.youtube.com/@GothamChess/videos")

	if e.ProcessWatchPageTitle(context.Background(), page) {
		t.Error("substituted on a page with no video identifier in URL")
	}
}

func TestProcessFragment_GateLookup(t *testing.T) {
	const foreignCard = `<html><body>
<ytd-video-renderer>
  <a id="video-title-link" href="/watch?v=abcEFghiJKL">
    <yt-formatted-string id="video-title">Reused Identifier</yt-formatted-string>
  </a>
  <ytd-channel-name><a href="/@SomeoneElse">Someone Else</a></ytd-channel-name>
</ytd-video-renderer>
</body></html>`

	rep := &countReporter{}
	e := New(Config{Channel: testProfile(), GateLookup: true}, rep)
	e.SetMapping(titles.Mapping{"abcEFghiJKL": {CleanTitle: "Magnus Resigns After 3 Moves"}})
	e.SetEnabled(true)

	page := parsePage(t, foreignCard, "https://www.youtube.com/results?search_query=chess")
	frag := page.Query("ytd-video-renderer")

	if e.ProcessFragment(context.Background(), page, frag) {
		t.Error("gated engine substituted a fragment attributed to another channel")
	}
}
