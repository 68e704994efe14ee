package rewrite

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/retitle/internal/dom"
)

// ChannelProfile describes the tracked channel: every known way the host
// page spells it, both as URL targets and as display text.
type ChannelProfile struct {
	// Handle is the channel handle including the @, e.g. "@GothamChess".
	Handle string `yaml:"handle"`
	// ID is the canonical channel identifier, e.g. "UCQHX6ViZmPsWiYSFAyS0a3Q".
	ID string `yaml:"id"`
	// LegacySlug is the custom-URL name used under /c/ and /user/ paths.
	LegacySlug string `yaml:"legacy_slug"`
	// NameVariants are case-insensitive display-name spellings.
	NameVariants []string `yaml:"names"`
}

// DefaultChannel returns the built-in tracked channel profile.
func DefaultChannel() ChannelProfile {
	return ChannelProfile{
		Handle:       "@GothamChess",
		ID:           "UCQHX6ViZmPsWiYSFAyS0a3Q",
		LegacySlug:   "gothamchess",
		NameVariants: []string{"GothamChess", "Gotham Chess"},
	}
}

// MatchesPageURL reports whether pageURL is one of the channel's own
// pages: handle path, legacy custom-URL path, or canonical channel-ID
// path, with or without trailing sections like /videos.
func (p ChannelProfile) MatchesPageURL(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))

	var prefixes []string
	if p.Handle != "" {
		prefixes = append(prefixes, "/"+strings.ToLower(p.Handle))
	}
	if p.LegacySlug != "" {
		slug := strings.ToLower(p.LegacySlug)
		prefixes = append(prefixes, "/c/"+slug, "/user/"+slug)
	}
	if p.ID != "" {
		prefixes = append(prefixes, "/channel/"+strings.ToLower(p.ID))
	}

	for _, pre := range prefixes {
		if path == pre || strings.HasPrefix(path, pre+"/") {
			return true
		}
	}
	return false
}

// MatchesLinkTarget reports whether an outbound link target points at the
// channel via its handle, canonical ID, or custom-URL slug.
func (p ChannelProfile) MatchesLinkTarget(href string) bool {
	if href == "" {
		return false
	}
	h := strings.ToLower(href)
	if p.Handle != "" && strings.Contains(h, strings.ToLower(p.Handle)) {
		return true
	}
	if p.ID != "" && strings.Contains(h, strings.ToLower(p.ID)) {
		return true
	}
	if p.LegacySlug != "" {
		slug := strings.ToLower(p.LegacySlug)
		if strings.Contains(h, "/c/"+slug) || strings.Contains(h, "/user/"+slug) {
			return true
		}
	}
	return false
}

// MatchesName reports whether visible text contains any display-name
// variant, case-insensitively.
func (p ChannelProfile) MatchesName(text string) bool {
	t := strings.ToLower(text)
	for _, v := range p.NameVariants {
		if v != "" && strings.Contains(t, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// Classifier decides whether a fragment belongs to the tracked channel.
// It never mutates anything; absent attribution markup means "no", not
// an error.
type Classifier struct {
	Profile  ChannelProfile
	Patterns []string // attribution locations, in priority order

	// PageShortcut classifies every fragment as the channel's when the
	// ambient page URL is one of the channel's own pages. Cheap, but a
	// guest video embedded on the channel page would be misclassified;
	// see the gating discussion in DESIGN.md.
	PageShortcut bool
}

// BelongsToChannel combines the page-context signal and the
// fragment-local signal by logical OR.
func (c *Classifier) BelongsToChannel(pageURL string, frag *html.Node) bool {
	if c.PageShortcut && c.Profile.MatchesPageURL(pageURL) {
		return true
	}
	return c.fragmentSignal(frag)
}

// fragmentSignal inspects attribution markup inside the fragment. The
// first attribution location that exists decides; when none exists, every
// outbound link is scanned as a last resort.
func (c *Classifier) fragmentSignal(frag *html.Node) bool {
	if frag == nil {
		return false
	}

	if loc := dom.QueryFirst(frag, c.Patterns); loc != nil {
		if c.Profile.MatchesName(dom.Text(loc)) {
			return true
		}
		return c.Profile.MatchesLinkTarget(linkTarget(loc))
	}

	for _, a := range dom.QueryAll(frag, "a[href]") {
		if c.Profile.MatchesLinkTarget(dom.Attr(a, "href")) {
			return true
		}
	}
	return false
}

// linkTarget returns the href of n itself, or of its first anchor
// descendant when n is a wrapper around the actual link.
func linkTarget(n *html.Node) string {
	if href := dom.Attr(n, "href"); href != "" {
		return href
	}
	if a := dom.Query(n, "a[href]"); a != nil && a != n {
		return dom.Attr(a, "href")
	}
	return ""
}
