package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// XPath computes an absolute, positional XPath for an element node, e.g.
// /html/body/div[2]/a[1]. The live layer resolves these with
// document.evaluate when replaying edits, so the address must be exact
// for the snapshot the node came from — it is not meant to survive
// further host mutation (the next scan recomputes everything).
func XPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}

	var steps []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		steps = append(steps, step(cur))
	}

	var sb strings.Builder
	for i := len(steps) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(steps[i])
	}
	return sb.String()
}

// step renders one path component with a 1-based index among same-tag
// element siblings. html, head and body are singletons and need none.
func step(n *html.Node) string {
	name := n.Data
	switch name {
	case "html", "head", "body":
		return name
	}

	idx := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode && sib.Data == name {
			idx++
		}
	}
	return name + "[" + strconv.Itoa(idx) + "]"
}
