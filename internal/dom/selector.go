package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// The selector support here is a deliberate subset of CSS, enough for the
// structural patterns we track on the host page:
//
//	tag               "ytd-video-renderer"
//	#id               "#video-title"
//	.class            ".title"
//	tag#id            "a#thumbnail"
//	tag.class         "span.title"
//	tag[attr]         "a[href]"
//	tag[attr=val]     "div[role=main]"
//	descendant chain  "h1.title yt-formatted-string"
//
// Anything fancier belongs in Go code, not in the pattern lists.

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// Query returns the first match of selector under root (root included),
// or nil when nothing matches. Callers treat nil as "skip", never as an
// error.
func Query(root *html.Node, selector string) *html.Node {
	matches := QueryAll(root, selector)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// QueryAll returns every match of selector under root, in document order.
func QueryAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parseSimple(parts[0]))
	for _, part := range parts[1:] {
		sel := parseSimple(part)
		var next []*html.Node
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				next = append(next, matchSimple(c, sel)...)
			}
		}
		matches = next
	}
	return matches
}

// QueryFirst tries an ordered list of selectors and returns the first
// node any of them yields. The list order is the preference order.
func QueryFirst(root *html.Node, selectors []string) *html.Node {
	for _, sel := range selectors {
		if n := Query(root, sel); n != nil {
			return n
		}
	}
	return nil
}

func matchSimple(root *html.Node, sel simpleSelector) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matches(n, sel) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func parseSimple(part string) simpleSelector {
	var s simpleSelector

	if i := strings.IndexByte(part, '['); i >= 0 {
		attr := strings.TrimSuffix(part[i+1:], "]")
		part = part[:i]
		if eq := strings.IndexByte(attr, '='); eq >= 0 {
			s.attrKey = attr[:eq]
			s.attrVal = strings.Trim(attr[eq+1:], `"'`)
		} else {
			s.attrKey = attr
		}
	}
	if i := strings.IndexByte(part, '#'); i >= 0 {
		s.id = part[i+1:]
		part = part[:i]
	}
	if i := strings.IndexByte(part, '.'); i >= 0 {
		s.class = part[i+1:]
		part = part[:i]
	}
	s.tag = part
	return s
}

func matches(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		if !HasAttr(n, s.attrKey) {
			return false
		}
		if s.attrVal != "" && Attr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}
