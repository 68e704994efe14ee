// Package titles implements the mapping collaborators: the SQLite cache
// of clean titles and settings, the remote feed fetcher, and the bridge
// that loads state at startup and pushes changes to the rewrite engine.
package titles

// Record is one tracked video's entry in the title mapping. The engine
// consumes only CleanTitle; the remaining fields ride along from the feed
// for diagnostics.
type Record struct {
	CleanTitle    string `json:"clean_title"`
	Tag           string `json:"tag,omitempty"`
	OriginalTitle string `json:"original_title,omitempty"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

// Mapping maps video identifiers to their records. A Mapping is never
// mutated after publication: updates build a fresh map and swap it
// wholesale, so readers can hold a reference without locking.
type Mapping map[string]Record

// Lookup returns the record for id. Absence means "not a tracked video".
func (m Mapping) Lookup(id string) (Record, bool) {
	r, ok := m[id]
	return r, ok
}

// Change is one changed mapping key, carrying old and new values.
// A nil Old is an addition; a nil New is a removal.
type Change struct {
	ID  string
	Old *Record
	New *Record
}

// Diff computes the changed keys between two mappings.
func Diff(old, fresh Mapping) []Change {
	var changes []Change
	for id, rec := range fresh {
		prev, ok := old[id]
		if !ok {
			r := rec
			changes = append(changes, Change{ID: id, New: &r})
			continue
		}
		if prev != rec {
			p, r := prev, rec
			changes = append(changes, Change{ID: id, Old: &p, New: &r})
		}
	}
	for id, prev := range old {
		if _, ok := fresh[id]; !ok {
			p := prev
			changes = append(changes, Change{ID: id, Old: &p})
		}
	}
	return changes
}

// Apply builds a new Mapping from m with only the changed keys applied,
// leaving all other entries untouched.
func (m Mapping) Apply(changes []Change) Mapping {
	next := make(Mapping, len(m)+len(changes))
	for id, rec := range m {
		next[id] = rec
	}
	for _, c := range changes {
		if c.New == nil {
			delete(next, c.ID)
			continue
		}
		next[c.ID] = *c.New
	}
	return next
}

// Settings is the process-wide user configuration mirrored by the engine.
type Settings struct {
	Enabled bool
}
