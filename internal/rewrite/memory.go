package rewrite

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/net/html"
)

// processingMemory associates fragments with the identifier they were
// last processed for. The host recycles DOM nodes — the same node can
// come back showing a different video — so "already tagged" is not
// enough: an entry is only a skip permit while the identifier still
// matches.
//
// Keys are weak pointers with cleanup-based eviction, so the memory never
// keeps a destroyed fragment alive; it records association, not
// ownership. Clear swaps the whole map on navigation, since nothing
// associated before a navigation is meaningful after it.
type processingMemory struct {
	mu   sync.Mutex
	seen map[weak.Pointer[html.Node]]string
}

func newProcessingMemory() *processingMemory {
	return &processingMemory{seen: make(map[weak.Pointer[html.Node]]string)}
}

// lookup returns the identifier frag was last processed for.
func (m *processingMemory) lookup(frag *html.Node) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.seen[weak.Make(frag)]
	return id, ok
}

// remember records frag → id and arranges eviction when frag is
// collected.
func (m *processingMemory) remember(frag *html.Node, id string) {
	wp := weak.Make(frag)

	m.mu.Lock()
	_, known := m.seen[wp]
	m.seen[wp] = id
	m.mu.Unlock()

	if !known {
		runtime.AddCleanup(frag, func(key weak.Pointer[html.Node]) {
			m.mu.Lock()
			delete(m.seen, key)
			m.mu.Unlock()
		}, wp)
	}
}

// clear drops every association.
func (m *processingMemory) clear() {
	m.mu.Lock()
	m.seen = make(map[weak.Pointer[html.Node]]string)
	m.mu.Unlock()
}

// size reports the number of live associations.
func (m *processingMemory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
