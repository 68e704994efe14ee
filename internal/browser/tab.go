package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/retitle/internal/dom"
)

// Tab wraps a Rod page on the observed site: snapshots out, edits in.
type Tab struct {
	Page    *rod.Page
	PageURL string
}

// OpenTab creates a stealth tab and navigates to the URL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL}, nil
}

// Snapshot serialises the complete live DOM as outer HTML.
func (t *Tab) Snapshot(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// CurrentURL returns the tab's current location. SPA navigations change
// it without a page load, so this is read fresh before every scan.
func (t *Tab) CurrentURL(ctx context.Context) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: read location: %w", err)
	}
	return res.Value.Str(), nil
}

// Apply replays a batch of edits into the live page in a single Eval.
// Each edit targets a node by absolute XPath; nodes that have been
// removed or moved since the snapshot are skipped silently. Returns the
// number of edits that landed.
func (t *Tab) Apply(ctx context.Context, edits []dom.Edit) (int, error) {
	if len(edits) == 0 {
		return 0, nil
	}
	payload, err := json.Marshal(edits)
	if err != nil {
		return 0, fmt.Errorf("browser: encode edits: %w", err)
	}

	res, err := t.Page.Context(ctx).Eval(`(edits) => {
		let applied = 0;
		for (const e of edits) {
			const r = document.evaluate(e.xpath, document, null,
				XPathResult.FIRST_ORDERED_NODE_TYPE, null);
			const node = r.singleNodeValue;
			if (!node) continue;
			if (e.op === "text") {
				node.textContent = e.value;
				applied++;
			} else if (e.op === "attr") {
				node.setAttribute(e.name, e.value);
				applied++;
			}
		}
		return applied;
	}`, json.RawMessage(payload))
	if err != nil {
		return 0, fmt.Errorf("browser: apply edits: %w", err)
	}
	return res.Value.Int(), nil
}

// Visible reports whether the node at the XPath has a non-empty
// bounding rect inside the viewport.
func (t *Tab) Visible(ctx context.Context, xpath string) (bool, error) {
	res, err := t.Page.Context(ctx).Eval(`(xpath) => {
		const r = document.evaluate(xpath, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null);
		const node = r.singleNodeValue;
		if (!node || !node.getBoundingClientRect) return false;
		const rect = node.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		return rect.bottom > 0 && rect.top < window.innerHeight;
	}`, xpath)
	if err != nil {
		return false, fmt.Errorf("browser: visibility probe: %w", err)
	}
	return res.Value.Bool(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
