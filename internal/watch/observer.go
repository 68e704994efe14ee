package watch

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/retitle/internal/browser"
)

//go:embed observer.js
var observerJS []byte

const bindingName = "__retitle_binding"

// observer installs the in-page MutationObserver and forwards its
// signals to the scheduler. Signals are coarse by design: the page is
// re-snapshotted on every scan, so no per-mutation detail is needed,
// and the scheduler's debounce absorbs duplicates.
type observer struct {
	tab    *browser.Tab
	sched  *scheduler
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// onNavigate receives the new URL before the scheduler is poked.
	onNavigate func(url string)
}

func newObserver(tab *browser.Tab, sched *scheduler, onNavigate func(string), logger *slog.Logger) *observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &observer{tab: tab, sched: sched, onNavigate: onNavigate, logger: logger}
}

// start enables DOM tracking, registers the binding, and injects the
// page script. Must be called after the page has loaded.
func (o *observer) start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)
	page := o.tab.Page

	// DOM.getDocument with depth=-1 and pierce=true so CDP tracks the
	// whole tree. Without it, events on deep nodes are silently
	// dropped.
	depth := -1
	if _, err := (proto.DOMGetDocument{Depth: &depth, Pierce: true}).Call(page); err != nil {
		return fmt.Errorf("observer: DOM.getDocument: %w", err)
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		o.logger.Warn("observer: addBinding failed (may already exist)", "error", err)
	}
	go o.listenBinding()

	// DOM.documentUpdated means a full document replacement; the page
	// script is gone and must be re-injected.
	go page.Context(o.ctx).EachEvent(func(e *proto.DOMDocumentUpdated) {
		o.logger.Info("observer: document replaced, re-injecting")
		if err := o.inject(); err != nil {
			o.logger.Error("observer: re-inject failed", "error", err)
		}
		o.sched.OnNavigation()
	})()

	if err := o.inject(); err != nil {
		return err
	}

	o.logger.Info("observer: started", "url", o.tab.PageURL)
	return nil
}

func (o *observer) inject() error {
	if _, err := o.tab.Page.Eval(string(observerJS)); err != nil {
		return fmt.Errorf("observer: inject page script: %w", err)
	}
	return nil
}

// listenBinding receives signals from the page script via
// Runtime.bindingCalled and routes them to the scheduler.
func (o *observer) listenBinding() {
	o.tab.Page.Context(o.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}

		var sig struct {
			Kind string `json:"kind"`
			URL  string `json:"url"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &sig); err != nil {
			o.logger.Warn("observer: parse binding payload", "error", err)
			return
		}

		switch sig.Kind {
		case "mutation":
			o.sched.OnMutation()
		case "navigate":
			o.logger.Info("observer: in-page navigation", "url", sig.URL)
			if o.onNavigate != nil {
				o.onNavigate(sig.URL)
			}
			o.sched.OnNavigation()
		case "scroll":
			o.sched.OnScroll()
		default:
			o.logger.Warn("observer: unknown signal", "kind", sig.Kind)
		}
	})()
}

func (o *observer) stop() {
	if o.cancel != nil {
		o.cancel()
	}
}
