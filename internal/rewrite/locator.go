package rewrite

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/retitle/internal/dom"
)

// Locator resolves the two interesting elements of a fragment: the
// displayed title and the permalink anchor. Both lookups try their
// pattern list in order and report "not found" as a plain nil/false —
// callers skip the fragment, they do not error.
type Locator struct {
	Patterns Patterns
}

// TitleElement returns the fragment's displayed-title element, or nil.
func (l *Locator) TitleElement(frag *html.Node) *html.Node {
	return dom.QueryFirst(frag, l.Patterns.Title)
}

// PermalinkHref returns the link target that encodes the fragment's
// video URL. It does not parse the target; identifier extraction is the
// caller's business.
func (l *Locator) PermalinkHref(frag *html.Node) (string, bool) {
	for _, sel := range l.Patterns.Permalink {
		for _, n := range dom.QueryAll(frag, sel) {
			if href := dom.Attr(n, "href"); href != "" {
				return href, true
			}
		}
	}
	return "", false
}

// WatchTitleElement returns the single now-playing title element on a
// watch page, or nil when the page has none.
func (l *Locator) WatchTitleElement(root *html.Node) *html.Node {
	return dom.QueryFirst(root, l.Patterns.WatchTitle)
}
