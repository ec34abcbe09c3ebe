// Package decoration computes inline replacement decorations for
// variable shortcodes visible in an editor viewport.
package decoration

import (
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/cache"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/scanner"
)

var log = commonlog.GetLogger("qvar.decoration")

const defaultScrollDebounce = 100 * time.Millisecond

// Trigger classifies the editor event that asked for a rebuild.
type Trigger int

const (
	TriggerEdit Trigger = iota
	TriggerSelection
	TriggerScroll
)

// State of a view's rebuild pipeline.
type State int

const (
	StateIdle State = iota
	StateScanRequested
	StateRebuilding
)

// View is a snapshot of what the editor currently shows: the viewport
// text, its absolute start offset in the document and the cursor's
// absolute offset.
type View struct {
	Path   string
	Text   string
	Offset int
	Cursor int
}

// Decoration replaces the span [From, To) with Text. Unresolved marks
// spans whose key has no value, shown raw but highlighted.
type Decoration struct {
	From       int
	To         int
	Text       string
	Unresolved bool
}

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	HighlightUnresolved bool
	ScrollDebounce      time.Duration
	// Sink receives the decorations of each completed rebuild.
	Sink func(path string, decorations []Decoration)
}

type viewState struct {
	state        State
	timer        *time.Timer
	pending      View
	scrollOnly   bool
	loadInFlight bool
	loadFailed   bool
	lastVersion  uint64
	lastDecs     []Decoration
}

// Engine schedules and performs decoration rebuilds, one pipeline per
// open view. Edits and selection changes rebuild immediately (same-tick
// events coalesce through the replaced timer); scrolling over a project
// whose values are not yet cached is debounced.
type Engine struct {
	store    *cache.Store
	resolver resolver.Resolver
	scanner  *scanner.ViewportScanner
	opts     Options

	mu    sync.Mutex
	views map[string]*viewState
}

func NewEngine(store *cache.Store, res resolver.Resolver, opts Options) *Engine {
	if opts.ScrollDebounce == 0 {
		opts.ScrollDebounce = defaultScrollDebounce
	}
	return &Engine{
		store:    store,
		resolver: res,
		scanner:  scanner.NewViewportScanner(),
		opts:     opts,
		views:    make(map[string]*viewState),
	}
}

// Update records the latest view snapshot and schedules a rebuild
// according to the trigger. A newer call replaces any pending timer.
func (e *Engine) Update(view View, trigger Trigger) {
	e.mu.Lock()
	vs := e.view(view.Path)
	vs.pending = view
	vs.loadFailed = false

	scroll := trigger == TriggerScroll
	if vs.state == StateScanRequested {
		vs.scrollOnly = vs.scrollOnly && scroll
	} else {
		vs.scrollOnly = scroll
	}

	delay := time.Duration(0)
	if scroll && !e.cachedLocked(view.Path) && e.store.GetCurrentVersion() == vs.lastVersion {
		delay = e.opts.ScrollDebounce
	}
	e.scheduleLocked(view.Path, vs, delay)
	e.mu.Unlock()
}

// Rebuild computes decorations for the view synchronously, bypassing
// the scheduler. Used by pull-style hosts that ask on demand.
func (e *Engine) Rebuild(view View) []Decoration {
	e.mu.Lock()
	vs := e.view(view.Path)
	vs.pending = view
	e.mu.Unlock()

	decorations, changed := e.rebuild(view, vs)

	e.mu.Lock()
	defer e.mu.Unlock()
	vs.lastVersion = e.store.GetCurrentVersion()
	if changed {
		vs.lastDecs = decorations
	}
	return vs.lastDecs
}

// ViewState reports the pipeline state of one view.
func (e *Engine) ViewState(path string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if vs, ok := e.views[path]; ok {
		return vs.state
	}
	return StateIdle
}

// CloseView drops all state held for a view.
func (e *Engine) CloseView(path string) {
	e.mu.Lock()
	if vs, ok := e.views[path]; ok {
		if vs.timer != nil {
			vs.timer.Stop()
		}
		delete(e.views, path)
	}
	e.mu.Unlock()
	e.scanner.Invalidate(path)
}

func (e *Engine) view(path string) *viewState {
	vs, ok := e.views[path]
	if !ok {
		vs = &viewState{}
		e.views[path] = vs
	}
	return vs
}

func (e *Engine) scheduleLocked(path string, vs *viewState, delay time.Duration) {
	vs.state = StateScanRequested
	if vs.timer != nil {
		vs.timer.Stop()
	}
	vs.timer = time.AfterFunc(delay, func() { e.fire(path) })
}

func (e *Engine) cachedLocked(path string) bool {
	project, ok := e.resolver.ResolveDocument(path)
	if !ok {
		return false
	}
	return e.store.GetStructure(project) != nil
}

func (e *Engine) fire(path string) {
	e.mu.Lock()
	vs, ok := e.views[path]
	if !ok || vs.state != StateScanRequested {
		e.mu.Unlock()
		return
	}
	vs.state = StateRebuilding
	vs.timer = nil
	view := vs.pending
	scrollOnly := vs.scrollOnly
	e.mu.Unlock()

	// Spans memoized for other viewport windows are stale once the
	// window moved without an edit.
	if scrollOnly {
		e.scanner.InvalidateOthers(path)
	}

	decorations, changed := e.rebuild(view, vs)

	e.mu.Lock()
	if vs.state == StateRebuilding {
		vs.state = StateIdle
	}
	vs.lastVersion = e.store.GetCurrentVersion()
	if changed {
		vs.lastDecs = decorations
	}
	sink := e.opts.Sink
	e.mu.Unlock()

	if sink != nil && changed {
		sink(path, decorations)
	}
}

// rebuild scans the viewport and resolves each match. The bool result
// is false when existing decorations should be kept because a
// background load was started instead.
func (e *Engine) rebuild(view View, vs *viewState) ([]Decoration, bool) {
	matches := e.scanner.Scan(view.Path, view.Text, view.Offset)

	project, ok := e.resolver.ResolveDocument(view.Path)
	if !ok {
		return flagAll(view, matches), true
	}

	if e.store.GetStructure(project) == nil {
		e.mu.Lock()
		failed := vs.loadFailed
		start := !failed && !vs.loadInFlight
		if start {
			vs.loadInFlight = true
		}
		e.mu.Unlock()

		if failed {
			return flagAll(view, matches), true
		}
		if start {
			go e.backgroundLoad(view.Path, project)
		}
		return nil, false
	}

	decorations := make([]Decoration, 0, len(matches))
	for _, m := range matches {
		if view.Cursor >= m.From && view.Cursor <= m.To {
			continue
		}
		value, found := e.store.Get(project, m.Key)
		if found {
			decorations = append(decorations, Decoration{From: m.From, To: m.To, Text: value})
			continue
		}
		if e.opts.HighlightUnresolved {
			decorations = append(decorations, flagged(view, m))
		}
	}
	return decorations, true
}

// backgroundLoad fetches a project's values off the event path and
// schedules a fresh rebuild when they arrive.
func (e *Engine) backgroundLoad(path string, project resolver.Project) {
	_, err := e.store.LoadVariables(project)

	e.mu.Lock()
	vs, ok := e.views[path]
	if !ok {
		e.mu.Unlock()
		return
	}
	vs.loadInFlight = false
	if err != nil {
		log.Debugf("background load failed for %s: %s", project.Root, err)
		vs.loadFailed = true
	}
	vs.scrollOnly = false
	e.scheduleLocked(path, vs, 0)
	e.mu.Unlock()
}

// flagAll renders every match as a highlighted raw placeholder. Used
// when no project is associated with the view or its values cannot be
// loaded, so shortcodes are never silently hidden.
func flagAll(view View, matches []scanner.Match) []Decoration {
	decorations := make([]Decoration, 0, len(matches))
	for _, m := range matches {
		if view.Cursor >= m.From && view.Cursor <= m.To {
			continue
		}
		decorations = append(decorations, flagged(view, m))
	}
	return decorations
}

func flagged(view View, m scanner.Match) Decoration {
	return Decoration{
		From:       m.From,
		To:         m.To,
		Text:       view.Text[m.From-view.Offset : m.To-view.Offset],
		Unresolved: true,
	}
}
