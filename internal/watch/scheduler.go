// Package watch ties the live page to the rewrite engine: an injected
// MutationObserver reports activity through a CDP binding, a scheduler
// coalesces bursts into single rescans, and the watcher replays the
// resulting edits into the tab.
package watch

import (
	"sync"
	"time"
)

// schedulerConfig controls the coalescing windows.
type schedulerConfig struct {
	// MutationWindow is the quiet period after DOM mutations before a
	// rescan fires. Default: 100ms.
	MutationWindow time.Duration
	// NavigationSettle is the wait after an in-page navigation before
	// the first rescan of the new view. Default: 500ms.
	NavigationSettle time.Duration
	// ScrollWindow is the quiet period after scroll activity. Default:
	// 200ms.
	ScrollWindow time.Duration
	// ScrollEnabled arms rescans on scroll. Only useful with
	// visibility gating: without it, scroll position changes nothing a
	// scan would see.
	ScrollEnabled bool
}

func (sc *schedulerConfig) defaults() {
	if sc.MutationWindow <= 0 {
		sc.MutationWindow = 100 * time.Millisecond
	}
	if sc.NavigationSettle <= 0 {
		sc.NavigationSettle = 500 * time.Millisecond
	}
	if sc.ScrollWindow <= 0 {
		sc.ScrollWindow = 200 * time.Millisecond
	}
}

// scheduler coalesces observer signals into scan requests. A burst of
// mutations inside the window produces exactly one scan. Rearming
// replaces any pending timer, so the last signal wins.
type scheduler struct {
	cfg     schedulerConfig
	scanFn  func()
	resetFn func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newScheduler(cfg schedulerConfig, scanFn, resetFn func()) *scheduler {
	cfg.defaults()
	return &scheduler{cfg: cfg, scanFn: scanFn, resetFn: resetFn}
}

// OnMutation arms (or rearms) a scan after the mutation window.
func (s *scheduler) OnMutation() {
	s.arm(s.cfg.MutationWindow)
}

// OnScroll arms a scan after the scroll window. Ignored unless scroll
// rescans are enabled.
func (s *scheduler) OnScroll() {
	if !s.cfg.ScrollEnabled {
		return
	}
	s.arm(s.cfg.ScrollWindow)
}

// OnNavigation clears per-view state immediately, then arms a scan for
// after the new view has settled. The reset must not wait for the
// timer: nodes from the previous view are invalid the moment the URL
// changes.
func (s *scheduler) OnNavigation() {
	if s.resetFn != nil {
		s.resetFn()
	}
	s.arm(s.cfg.NavigationSettle)
}

func (s *scheduler) arm(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, s.scanFn)
}

// Stop cancels any pending scan. Further signals are ignored.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
