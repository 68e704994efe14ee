// Package dom models one live page as a parsed HTML tree plus a journal
// of pending mutations.
//
// The rewrite engine works entirely on this in-memory model: it reads
// text and attributes from nodes and writes through the Page so that
// every mutation is recorded as an XPath-addressed Edit. A live consumer
// replays the journal into the real page; tests assert on the tree
// directly. The pipeline: snapshot → Parse → scan → Edits → replay.
package dom

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// EditOp is the kind of journaled mutation.
type EditOp string

const (
	EditText EditOp = "text" // replace an element's text content
	EditAttr EditOp = "attr" // set an attribute
)

// Edit is a single XPath-addressed mutation, replayable into a live page.
type Edit struct {
	Op    EditOp `json:"op"`
	XPath string `json:"xpath"`
	Name  string `json:"name,omitempty"` // attribute name for attr edits
	Value string `json:"value"`
}

// Page is one parsed page: the document tree, the ambient URL it was
// loaded from, and the mutation journal.
type Page struct {
	URL   string
	doc   *html.Node
	edits []Edit
}

// Parse reads an HTML document and wraps it as a Page.
func Parse(r io.Reader, pageURL string) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Page{URL: pageURL, doc: doc}, nil
}

// ParseString is Parse over a string. Parsing HTML never fails for
// non-empty input, so this is convenient for fixtures.
func ParseString(s, pageURL string) (*Page, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// Root returns the document node.
func (p *Page) Root() *html.Node { return p.doc }

// Query returns the first node under the document matching the selector.
func (p *Page) Query(selector string) *html.Node {
	return Query(p.doc, selector)
}

// QueryAll returns all nodes under the document matching the selector.
func (p *Page) QueryAll(selector string) []*html.Node {
	return QueryAll(p.doc, selector)
}

// SetText replaces n's children with a single text node and journals the
// edit. No-op when n already carries exactly that text.
func (p *Page) SetText(n *html.Node, text string) {
	if Text(n) == text {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	p.edits = append(p.edits, Edit{Op: EditText, XPath: XPath(n), Value: text})
}

// SetAttr sets an attribute on n and journals the edit.
func (p *Page) SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			if n.Attr[i].Val == val {
				return
			}
			n.Attr[i].Val = val
			p.edits = append(p.edits, Edit{Op: EditAttr, XPath: XPath(n), Name: key, Value: val})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	p.edits = append(p.edits, Edit{Op: EditAttr, XPath: XPath(n), Name: key, Value: val})
}

// Edits returns the journal accumulated since the last TakeEdits.
func (p *Page) Edits() []Edit { return p.edits }

// TakeEdits returns the journal and resets it.
func (p *Page) TakeEdits() []Edit {
	e := p.edits
	p.edits = nil
	return e
}

// Text returns the whitespace-normalised text content of n: all text
// descendants concatenated, runs of whitespace collapsed to one space.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Attr returns the value of the named attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether n carries the named attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
