package scanner

import (
	"crypto/md5"
	"sync"
)

// defaultMaxViewports bounds the memo so a client cycling through many
// windows cannot grow it without limit.
const defaultMaxViewports = 16

type viewportEntry struct {
	checksum [md5.Size]byte
	offset   int
	matches  []Match
}

// ViewportScanner scans bounded windows of a larger document and
// returns matches with absolute offsets. The last result per viewport
// key is memoized and invalidated by a content checksum; when the memo
// is full the oldest entry is dropped.
type ViewportScanner struct {
	mu      sync.Mutex
	entries map[string]viewportEntry
	order   []string
	max     int
}

func NewViewportScanner() *ViewportScanner {
	return &ViewportScanner{
		entries: make(map[string]viewportEntry),
		max:     defaultMaxViewports,
	}
}

// Scan finds all shortcodes in the viewport text. offset is the
// absolute document offset of the viewport start; returned spans are
// absolute.
func (vs *ViewportScanner) Scan(viewKey, text string, offset int) []Match {
	sum := md5.Sum([]byte(text))

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if entry, ok := vs.entries[viewKey]; ok {
		if entry.checksum == sum && entry.offset == offset {
			return copyMatches(entry.matches)
		}
	}

	matches := FindAll(text)
	for i := range matches {
		matches[i].From += offset
		matches[i].To += offset
	}

	if _, exists := vs.entries[viewKey]; !exists {
		if len(vs.order) >= vs.max {
			oldest := vs.order[0]
			vs.order = vs.order[1:]
			delete(vs.entries, oldest)
		}
		vs.order = append(vs.order, viewKey)
	}
	vs.entries[viewKey] = viewportEntry{checksum: sum, offset: offset, matches: matches}

	return copyMatches(matches)
}

// Invalidate drops the memo for one viewport.
func (vs *ViewportScanner) Invalidate(viewKey string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.drop(viewKey)
}

// InvalidateOthers drops every memo except keep. Spans cached for a
// previous viewport window are not valid once the window moved.
func (vs *ViewportScanner) InvalidateOthers(keep string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for key := range vs.entries {
		if key != keep {
			vs.drop(key)
		}
	}
}

func (vs *ViewportScanner) drop(viewKey string) {
	if _, ok := vs.entries[viewKey]; !ok {
		return
	}
	delete(vs.entries, viewKey)
	for i, key := range vs.order {
		if key == viewKey {
			vs.order = append(vs.order[:i], vs.order[i+1:]...)
			break
		}
	}
}

func copyMatches(matches []Match) []Match {
	out := make([]Match, len(matches))
	copy(out, matches)
	return out
}
