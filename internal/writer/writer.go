// Package writer persists single-value changes back into a variables
// file. Every line it does not have to touch stays byte-identical to
// the original; only the value portion of the target key line is
// regenerated.
package writer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/horaciochacon/obsidian-quarto-variables/internal/fsio"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/resolver"
	"github.com/horaciochacon/obsidian-quarto-variables/internal/varfile"
)

var (
	// ErrPathNotFound is returned when a dotted path does not resolve
	// to an existing leaf node. No write is performed.
	ErrPathNotFound = errors.New("writer: variable path not found")

	// ErrFileExists is returned by CreateVariablesFile when the target
	// already exists.
	ErrFileExists = errors.New("writer: variables file already exists")
)

// unsupportedPlaceholder is written in place of value shapes the
// line format cannot carry, instead of silently mis-encoding them.
const unsupportedPlaceholder = `"[unsupported value]"`

const defaultScaffold = `# Variables
# Reference these in documents as {{< var key >}}

version: "1.0"
`

type Writer struct {
	fs fsio.FileSystem
}

func New(fs fsio.FileSystem) *Writer {
	return &Writer{fs: fs}
}

// UpdateVariable overwrites the value at dottedKey and writes the
// regenerated file. The caller's structure is never mutated; the
// target is resolved through the node tree so the correct nested
// occurrence is found.
func (w *Writer) UpdateVariable(
	project resolver.Project,
	structure *varfile.Structure,
	dottedKey string,
	newValue any,
) error {
	if structure == nil {
		return fmt.Errorf("writer: no structure for %s", project.DataFilePath)
	}

	clone := structure.Clone()

	node, err := findLeaf(clone.Sections, dottedKey)
	if err != nil {
		return err
	}

	node.Value = newValue
	node.Type = typeOf(newValue)
	setData(clone.Data, dottedKey, newValue)

	lines := append([]string(nil), clone.OriginalLines...)
	lines[node.LineStart] = rewriteValue(lines[node.LineStart], formatValue(newValue))

	content := strings.Join(lines, "\n")
	if err := w.fs.WriteFile(project.DataFilePath, []byte(content)); err != nil {
		return fmt.Errorf("writer: failed to write %s: %w", project.DataFilePath, err)
	}
	return nil
}

// CreateVariablesFile writes a fresh variables file with the default
// scaffold content.
func (w *Writer) CreateVariablesFile(project resolver.Project) error {
	if w.fs.Exists(project.DataFilePath) {
		return ErrFileExists
	}
	if err := w.fs.WriteFile(project.DataFilePath, []byte(defaultScaffold)); err != nil {
		return fmt.Errorf("writer: failed to create %s: %w", project.DataFilePath, err)
	}
	return nil
}

// AddVariable appends a new top-level key to the named section,
// creating the section at the end of the file when it does not exist.
// Indentation is inferred from sibling nodes where possible.
func (w *Writer) AddVariable(
	project resolver.Project,
	structure *varfile.Structure,
	sectionHeader, key string,
	value any,
) error {
	if structure == nil {
		return fmt.Errorf("writer: no structure for %s", project.DataFilePath)
	}

	lines := append([]string(nil), structure.OriginalLines...)
	entry := formatEntry(structure, sectionHeader, key, value)

	section := findSection(structure.Sections, sectionHeader)
	if section == nil {
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "# "+sectionHeader, entry)
	} else {
		at := section.LineNumber + 1
		if n := len(section.Nodes); n > 0 {
			at = section.Nodes[n-1].LineEnd + 1
		}
		lines = append(lines[:at], append([]string{entry}, lines[at:]...)...)
	}

	content := strings.Join(lines, "\n")
	if err := w.fs.WriteFile(project.DataFilePath, []byte(content)); err != nil {
		return fmt.Errorf("writer: failed to write %s: %w", project.DataFilePath, err)
	}
	return nil
}

// findLeaf walks the dotted path through the node tree. Landing on a
// structural parent, or running out of matching keys, is a path error.
func findLeaf(sections []*varfile.Section, dottedKey string) (*varfile.Node, error) {
	segments := strings.Split(dottedKey, ".")

	var nodes []*varfile.Node
	for _, section := range sections {
		nodes = append(nodes, section.Nodes...)
	}

	var found *varfile.Node
	for i, segment := range segments {
		found = nil
		for _, node := range nodes {
			if node.Key == segment {
				found = node
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, dottedKey)
		}
		if i < len(segments)-1 {
			if !found.IsStructuralParent {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, dottedKey)
			}
			nodes = found.Children
		}
	}
	if found.IsStructuralParent {
		return nil, fmt.Errorf("%w: %s is not a leaf", ErrPathNotFound, dottedKey)
	}
	return found, nil
}

// setData mirrors the node mutation into the decoded value map so both
// views of the clone agree. Intermediate containers the decode did not
// produce are created on the way down.
func setData(data map[string]any, dottedKey string, value any) {
	segments := strings.Split(dottedKey, ".")
	container := data
	for _, segment := range segments[:len(segments)-1] {
		next, ok := container[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			container[segment] = next
		}
		container = next
	}
	container[segments[len(segments)-1]] = value
}

func findSection(sections []*varfile.Section, header string) *varfile.Section {
	for _, section := range sections {
		if strings.EqualFold(section.Header, header) {
			return section
		}
	}
	return nil
}

// rewriteValue substitutes only the value portion of a key line.
// Everything up to and including the colon, the whitespace before the
// value and any trailing inline comment are preserved verbatim.
func rewriteValue(line, formatted string) string {
	colon := strings.Index(line, ":")
	prefix := line[:colon+1]
	rest := line[colon+1:]

	valueRegion := rest
	comment := ""
	for idx := 0; idx < len(rest); idx++ {
		if rest[idx] != '#' {
			continue
		}
		if idx == 0 || rest[idx-1] == ' ' || rest[idx-1] == '\t' {
			valueRegion = rest[:idx]
			comment = rest[idx:]
			break
		}
	}

	leading := valueRegion[:len(valueRegion)-len(strings.TrimLeft(valueRegion, " \t"))]
	trailing := ""
	if comment != "" {
		trailing = valueRegion[len(leading)+len(strings.TrimSpace(valueRegion)):]
		// An empty value region donates all its whitespace to leading;
		// without a separator the new value would glue onto the hash
		// and swallow the comment on the next parse.
		if trailing == "" {
			trailing = " "
		}
	}
	if leading == "" && formatted != "" {
		leading = " "
	}
	return prefix + leading + formatted + trailing + comment
}

// formatEntry renders "key: value" indented like the section's
// existing top-level siblings.
func formatEntry(structure *varfile.Structure, header, key string, value any) string {
	indent := ""
	if section := findSection(structure.Sections, header); section != nil && len(section.Nodes) > 0 {
		first := structure.OriginalLines[section.Nodes[0].LineStart]
		indent = first[:len(first)-len(strings.TrimLeft(first, " \t"))]
	}
	return indent + key + ": " + formatValue(value)
}

// formatValue renders a value in its line form. Arrays containing
// non-scalar elements and other shapes the format cannot carry render
// as an explicit placeholder.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("%v", v)
	case int, int64, uint64, float64:
		return fmt.Sprintf("%v", v)
	case string:
		if needsQuoting(v) {
			return fmt.Sprintf("%q", v)
		}
		return v
	case []any:
		parts := make([]string, len(v))
		for i, element := range v {
			if !isScalar(element) {
				return unsupportedPlaceholder
			}
			parts[i] = formatValue(element)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		if len(v) == 0 {
			return ""
		}
		parts := make([]string, 0, len(v))
		for _, key := range sortedKeys(v) {
			if !isScalar(v[key]) {
				return unsupportedPlaceholder
			}
			parts = append(parts, key+": "+formatValue(v[key]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return unsupportedPlaceholder
	}
}

func isScalar(value any) bool {
	switch value.(type) {
	case nil, bool, int, int64, uint64, float64, string:
		return true
	}
	return false
}

// needsQuoting reports whether a string must be double-quoted to
// survive a later YAML decode: significant punctuation, a leading
// digit or whitespace at either edge.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if strings.TrimSpace(s) != s {
		return true
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	return strings.ContainsAny(s, ":#{}[],&*!|>'\"%@`")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func typeOf(value any) varfile.ValueType {
	switch value.(type) {
	case nil:
		return varfile.TypeNull
	case bool:
		return varfile.TypeBoolean
	case int, int64, uint64, float64:
		return varfile.TypeNumber
	case string:
		return varfile.TypeString
	case []any:
		return varfile.TypeArray
	case map[string]any:
		return varfile.TypeObject
	}
	return varfile.TypeString
}
