package decoration

import (
	"sync"
	"testing"
	"time"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/cache"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/writer"
)

// staticResolver maps every document to one fixed project.
type staticResolver struct {
	project resolver.Project
	none    bool
}

func (r staticResolver) ResolveDocument(string) (resolver.Project, bool) {
	if r.none {
		return resolver.Project{}, false
	}
	return r.project, true
}

type sinkRecorder struct {
	mu    sync.Mutex
	calls [][]Decoration
	ch    chan []Decoration
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{ch: make(chan []Decoration, 16)}
}

func (r *sinkRecorder) sink(_ string, decorations []Decoration) {
	r.mu.Lock()
	r.calls = append(r.calls, decorations)
	r.mu.Unlock()
	r.ch <- decorations
}

func (r *sinkRecorder) wait(t *testing.T) []Decoration {
	t.Helper()
	select {
	case decorations := <-r.ch:
		return decorations
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild arrived")
		return nil
	}
}

func testSetup(t *testing.T, variables string, opts Options) (*Engine, *sinkRecorder, *cache.Store) {
	t.Helper()
	fs := fsio.NewMem()
	if variables != "" {
		fs.WriteFile("/proj/_variables.yml", []byte(variables))
	}
	store := cache.NewStore(fs, writer.New(fs), cache.Options{})
	recorder := newSinkRecorder()
	opts.Sink = recorder.sink
	res := staticResolver{project: resolver.Project{
		Root:           "/proj",
		DataFilePath:   "/proj/_variables.yml",
		ConfigFilePath: "/proj/_quarto.yml",
	}}
	return NewEngine(store, res, opts), recorder, store
}

func project() resolver.Project {
	return resolver.Project{
		Root:           "/proj",
		DataFilePath:   "/proj/_variables.yml",
		ConfigFilePath: "/proj/_quarto.yml",
	}
}

func TestRebuildResolvedAndUnresolved(t *testing.T) {
	engine, _, store := testSetup(t, "title: Report", Options{HighlightUnresolved: true})
	if _, err := store.LoadVariables(project()); err != nil {
		t.Fatal(err)
	}

	text := "See {{< var title >}} and {{< var missing >}}."
	decorations := engine.Rebuild(View{Path: "/proj/doc.qmd", Text: text, Cursor: -1})

	if len(decorations) != 2 {
		t.Fatalf("decorations = %v", decorations)
	}
	if decorations[0].Text != "Report" || decorations[0].Unresolved {
		t.Errorf("resolved decoration = %+v", decorations[0])
	}
	if !decorations[1].Unresolved || decorations[1].Text != "{{< var missing >}}" {
		t.Errorf("unresolved decoration = %+v", decorations[1])
	}
	if decorations[0].To > decorations[1].From {
		t.Error("decorations overlap")
	}
}

func TestRebuildHighlightDisabled(t *testing.T) {
	engine, _, store := testSetup(t, "title: Report", Options{})
	if _, err := store.LoadVariables(project()); err != nil {
		t.Fatal(err)
	}

	decorations := engine.Rebuild(View{
		Path:   "/proj/doc.qmd",
		Text:   "{{< var missing >}}",
		Cursor: -1,
	})
	if len(decorations) != 0 {
		t.Errorf("decorations = %v, want none for unresolved without highlighting", decorations)
	}
}

func TestRebuildCursorSuppression(t *testing.T) {
	engine, _, store := testSetup(t, "title: Report", Options{})
	if _, err := store.LoadVariables(project()); err != nil {
		t.Fatal(err)
	}

	text := "{{< var title >}}"
	view := View{Path: "/proj/doc.qmd", Text: text}

	// Inside, and inclusive at both boundary offsets.
	for _, cursor := range []int{0, 5, len(text)} {
		view.Cursor = cursor
		if decorations := engine.Rebuild(view); len(decorations) != 0 {
			t.Errorf("cursor %d: decorations = %v, want suppressed", cursor, decorations)
		}
	}

	view.Cursor = len(text) + 1
	if decorations := engine.Rebuild(view); len(decorations) != 1 {
		t.Errorf("cursor past span: decorations = %v, want 1", engine.Rebuild(view))
	}
}

func TestRebuildNoProject(t *testing.T) {
	fs := fsio.NewMem()
	store := cache.NewStore(fs, writer.New(fs), cache.Options{})
	engine := NewEngine(store, staticResolver{none: true}, Options{})

	decorations := engine.Rebuild(View{
		Path:   "/elsewhere/doc.qmd",
		Text:   "{{< var a >}} {{< var b >}}",
		Cursor: -1,
	})
	if len(decorations) != 2 {
		t.Fatalf("decorations = %v, want 2 flagged", decorations)
	}
	for _, d := range decorations {
		if !d.Unresolved {
			t.Errorf("decoration not flagged: %+v", d)
		}
	}
}

func TestRebuildViewportOffsets(t *testing.T) {
	engine, _, store := testSetup(t, "title: Report", Options{})
	if _, err := store.LoadVariables(project()); err != nil {
		t.Fatal(err)
	}

	decorations := engine.Rebuild(View{
		Path:   "/proj/doc.qmd",
		Text:   "x {{< var title >}}",
		Offset: 500,
		Cursor: -1,
	})
	if len(decorations) != 1 {
		t.Fatalf("decorations = %v", decorations)
	}
	if decorations[0].From != 502 || decorations[0].To != 519 {
		t.Errorf("span = [%d, %d), want absolute offsets", decorations[0].From, decorations[0].To)
	}
}

func TestUpdateEditPublishesToSink(t *testing.T) {
	engine, recorder, store := testSetup(t, "title: Report", Options{})
	if _, err := store.LoadVariables(project()); err != nil {
		t.Fatal(err)
	}

	engine.Update(View{Path: "/proj/doc.qmd", Text: "{{< var title >}}", Cursor: -1}, TriggerEdit)

	decorations := recorder.wait(t)
	if len(decorations) != 1 || decorations[0].Text != "Report" {
		t.Errorf("decorations = %v", decorations)
	}
	if engine.ViewState("/proj/doc.qmd") != StateIdle {
		t.Error("view not back to idle")
	}
}

func TestUpdateBackgroundLoad(t *testing.T) {
	engine, recorder, _ := testSetup(t, "title: Report", Options{})

	// Nothing cached yet: the first update starts a load, the follow-up
	// rebuild carries the resolved value.
	engine.Update(View{Path: "/proj/doc.qmd", Text: "{{< var title >}}", Cursor: -1}, TriggerEdit)

	decorations := recorder.wait(t)
	if len(decorations) != 1 || decorations[0].Text != "Report" {
		t.Errorf("decorations = %v", decorations)
	}
}

func TestUpdateBackgroundLoadFailure(t *testing.T) {
	engine, recorder, _ := testSetup(t, "", Options{})

	engine.Update(View{Path: "/proj/doc.qmd", Text: "{{< var title >}}", Cursor: -1}, TriggerEdit)

	decorations := recorder.wait(t)
	if len(decorations) != 1 || !decorations[0].Unresolved {
		t.Errorf("decorations = %v, want flagged raw placeholder", decorations)
	}
}

func TestScrollDebounceCoalesces(t *testing.T) {
	engine, recorder, _ := testSetup(t, "title: Report", Options{ScrollDebounce: 50 * time.Millisecond})

	view := View{Path: "/proj/doc.qmd", Text: "{{< var title >}}", Cursor: -1}
	for i := 0; i < 5; i++ {
		engine.Update(view, TriggerScroll)
	}

	recorder.wait(t)
	time.Sleep(100 * time.Millisecond)

	recorder.mu.Lock()
	calls := len(recorder.calls)
	recorder.mu.Unlock()
	// Five scroll events within one debounce window collapse into a
	// single scan, plus the rebuild scheduled by the background load.
	if calls > 2 {
		t.Errorf("sink called %d times, want coalesced", calls)
	}
}

func TestCloseViewStopsPending(t *testing.T) {
	engine, recorder, _ := testSetup(t, "title: Report", Options{ScrollDebounce: 50 * time.Millisecond})

	engine.Update(View{Path: "/proj/doc.qmd", Text: "{{< var title >}}", Cursor: -1}, TriggerScroll)
	engine.CloseView("/proj/doc.qmd")

	time.Sleep(100 * time.Millisecond)
	recorder.mu.Lock()
	calls := len(recorder.calls)
	recorder.mu.Unlock()
	if calls != 0 {
		t.Errorf("sink called %d times after close", calls)
	}
}
