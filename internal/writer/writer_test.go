package writer

import (
	"strings"
	"testing"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/varfile"
)

func testProject() resolver.Project {
	return resolver.Project{
		Root:           "/proj",
		DataFilePath:   "/proj/_variables.yml",
		ConfigFilePath: "/proj/_quarto.yml",
	}
}

func write(t *testing.T, fs *fsio.Mem, text string) *varfile.Structure {
	t.Helper()
	if err := fs.WriteFile("/proj/_variables.yml", []byte(text)); err != nil {
		t.Fatal(err)
	}
	return varfile.Parse(text)
}

func content(t *testing.T, fs *fsio.Mem) string {
	t.Helper()
	data, err := fs.ReadFile("/proj/_variables.yml")
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestUpdateVariableRoundTrip(t *testing.T) {
	fs := fsio.NewMem()
	original := "foo: bar\nnested:\n  key: value"
	structure := write(t, fs, original)

	w := New(fs)
	if err := w.UpdateVariable(testProject(), structure, "nested.key", "new value"); err != nil {
		t.Fatal(err)
	}

	got := strings.Split(content(t, fs), "\n")
	want := []string{"foo: bar", "nested:", "  key: new value"}
	if len(got) != len(want) {
		t.Fatalf("line count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}

	// The caller's structure must be untouched.
	if structure.FlatNodes[2].Value != "value" {
		t.Errorf("caller structure mutated: %v", structure.FlatNodes[2].Value)
	}

	// Re-parse agrees at every path.
	reparsed := varfile.Parse(content(t, fs))
	nested := reparsed.Data["nested"].(map[string]any)
	if nested["key"] != "new value" {
		t.Errorf("reparsed nested.key = %v", nested["key"])
	}
	if reparsed.Data["foo"] != "bar" {
		t.Errorf("unrelated key disturbed: %v", reparsed.Data["foo"])
	}
}

func TestUpdateVariablePreservesUntouchedBytes(t *testing.T) {
	fs := fsio.NewMem()
	original := strings.Join([]string{
		"# Project Metadata",
		"title:   Report   # working title",
		"",
		"edition: '2'",
		"nested:",
		"\tdeep: 1",
	}, "\n")
	structure := write(t, fs, original)

	w := New(fs)
	if err := w.UpdateVariable(testProject(), structure, "title", "Final Report"); err != nil {
		t.Fatal(err)
	}

	got := strings.Split(content(t, fs), "\n")
	want := strings.Split(original, "\n")
	for i := range want {
		if i == 1 {
			continue
		}
		if got[i] != want[i] {
			t.Errorf("untouched line %d changed: %q -> %q", i, want[i], got[i])
		}
	}
	if got[1] != "title:   Final Report   # working title" {
		t.Errorf("target line = %q", got[1])
	}
}

func TestUpdateVariableEmptyValueKeepsComment(t *testing.T) {
	fs := fsio.NewMem()
	structure := write(t, fs, "empty: # fill me in")

	w := New(fs)
	if err := w.UpdateVariable(testProject(), structure, "empty", "new"); err != nil {
		t.Fatal(err)
	}

	got := content(t, fs)
	if got != "empty: new # fill me in" {
		t.Fatalf("content = %q", got)
	}

	reparsed := varfile.Parse(got)
	if reparsed.Data["empty"] != "new" {
		t.Errorf("reparsed value = %v", reparsed.Data["empty"])
	}
	if reparsed.FlatNodes[0].Comment != "fill me in" {
		t.Errorf("reparsed comment = %q", reparsed.FlatNodes[0].Comment)
	}
}

func TestSetDataCreatesIntermediates(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{name: "missing branch", data: map[string]any{}},
		{name: "non-map intermediate", data: map[string]any{"a": "scalar"}},
		{name: "partial branch", data: map[string]any{"a": map[string]any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setData(tt.data, "a.b.c", 5)
			a, ok := tt.data["a"].(map[string]any)
			if !ok {
				t.Fatalf("a = %v", tt.data["a"])
			}
			b, ok := a["b"].(map[string]any)
			if !ok {
				t.Fatalf("a.b = %v", a["b"])
			}
			if b["c"] != 5 {
				t.Errorf("a.b.c = %v", b["c"])
			}
		})
	}
}

func TestUpdateVariablePathErrors(t *testing.T) {
	fs := fsio.NewMem()
	structure := write(t, fs, "a: 1\nnested:\n  key: value")
	w := New(fs)

	tests := []struct {
		name string
		key  string
	}{
		{name: "missing top level", key: "zzz"},
		{name: "missing nested", key: "nested.zzz"},
		{name: "through a leaf", key: "a.b"},
		{name: "structural parent target", key: "nested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.UpdateVariable(testProject(), structure, tt.key, "x")
			if err == nil {
				t.Fatal("expected path error")
			}
			if content(t, fs) != "a: 1\nnested:\n  key: value" {
				t.Error("failed update still wrote the file")
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "plain string", value: "hello", want: "hello"},
		{name: "string with colon", value: "a: b", want: `"a: b"`},
		{name: "string with hash", value: "a#b", want: `"a#b"`},
		{name: "leading digit", value: "2nd edition", want: `"2nd edition"`},
		{name: "edge whitespace", value: " padded", want: `" padded"`},
		{name: "empty string", value: "", want: `""`},
		{name: "int", value: 42, want: "42"},
		{name: "float", value: 3.14, want: "3.14"},
		{name: "bool", value: true, want: "true"},
		{name: "null", value: nil, want: "null"},
		{name: "flat array", value: []any{"a", 2, true}, want: "[a, 2, true]"},
		{name: "nested array", value: []any{"a", []any{"b"}}, want: unsupportedPlaceholder},
		{name: "object", value: map[string]any{"b": 2, "a": 1}, want: "{a: 1, b: 2}"},
		{name: "empty object", value: map[string]any{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.value); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestUpdateVariableArray(t *testing.T) {
	fs := fsio.NewMem()
	structure := write(t, fs, "tags: [a, b]")
	w := New(fs)

	if err := w.UpdateVariable(testProject(), structure, "tags", []any{"x", "y", 3}); err != nil {
		t.Fatal(err)
	}
	if got := content(t, fs); got != "tags: [x, y, 3]" {
		t.Errorf("content = %q", got)
	}
}

func TestAddVariableExistingSection(t *testing.T) {
	fs := fsio.NewMem()
	text := "# Links\nhome: https://example.org\n# Other\nmisc: 1"
	structure := write(t, fs, text)
	w := New(fs)

	if err := w.AddVariable(testProject(), structure, "Links", "docs", "https://docs.example.org"); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"# Links",
		"home: https://example.org",
		`docs: "https://docs.example.org"`,
		"# Other",
		"misc: 1",
	}, "\n")
	if got := content(t, fs); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestAddVariableNewSection(t *testing.T) {
	fs := fsio.NewMem()
	structure := write(t, fs, "a: 1")
	w := New(fs)

	if err := w.AddVariable(testProject(), structure, "Extras", "b", 2); err != nil {
		t.Fatal(err)
	}

	want := "a: 1\n\n# Extras\nb: 2"
	if got := content(t, fs); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestCreateVariablesFile(t *testing.T) {
	fs := fsio.NewMem()
	w := New(fs)

	if err := w.CreateVariablesFile(testProject()); err != nil {
		t.Fatal(err)
	}
	structure := varfile.Parse(content(t, fs))
	if structure.DecodeFailed || len(structure.FlatNodes) == 0 {
		t.Error("scaffold does not parse into usable structure")
	}

	if err := w.CreateVariablesFile(testProject()); err == nil {
		t.Error("expected error when file exists")
	}
}
