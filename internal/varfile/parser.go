package varfile

import (
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// implicitSectionHeader names the section holding keys that appear
// before any comment header.
const implicitSectionHeader = "Variables"

// Parse builds a Structure from the raw file text. Parsing never
// fails: a file the YAML loader rejects still gets a structural pass,
// and a right-hand side the loader rejects falls back to its raw
// trimmed string.
func Parse(text string) *Structure {
	lines := strings.Split(text, "\n")

	// One whole-file decode gives the plain lookup mapping. The
	// structural pass below must survive without it.
	data := map[string]any{}
	decodeFailed := false
	if err := yaml.Unmarshal([]byte(text), &data); err != nil {
		data = map[string]any{}
		decodeFailed = true
	}

	p := &parser{lines: lines}
	sections := p.parseSections()

	structure := &Structure{
		Sections:      sections,
		FlatNodes:     flatten(sections),
		OriginalLines: lines,
		Data:          data,
		DecodeFailed:  decodeFailed,
	}
	structure.Warnings = duplicateWarnings(structure.FlatNodes)
	return structure
}

type parser struct {
	lines []string
}

func (p *parser) parseSections() []*Section {
	var sections []*Section
	var current *Section
	var pending []*Node

	// Nodes accumulate until the next section boundary and are then
	// flushed into the section whose header preceded them.
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if current == nil {
			current = &Section{Header: implicitSectionHeader}
			sections = append(sections, current)
		}
		current.Nodes = append(current.Nodes, pending...)
		pending = nil
	}

	i := 0
	for i < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[i])
		if trimmed == "" {
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			flush()
			current = &Section{
				Header:     sectionHeader(trimmed),
				Comment:    trimmed,
				LineNumber: i,
			}
			sections = append(sections, current)
			i++
			continue
		}
		if !isKeyLine(trimmed) {
			i++
			continue
		}
		node, next := p.parseNode(i, "")
		pending = append(pending, node)
		i = next
	}
	flush()

	return sections
}

// parseNode parses the key line at index i and, for structural
// parents, the more-indented run below it. It returns the node and the
// index of the first line it did not consume.
func (p *parser) parseNode(i int, parentPath string) (*Node, int) {
	line := p.lines[i]
	trimmed := strings.TrimSpace(line)

	colon := strings.Index(trimmed, ":")
	key := trimmed[:colon]
	rhs := trimmed[colon+1:]

	value, comment := splitInlineComment(rhs)
	value = strings.TrimSpace(value)

	node := &Node{
		Key:        key,
		Level:      indentLevel(line),
		LineStart:  i,
		LineEnd:    i,
		Comment:    comment,
		ParentPath: parentPath,
	}

	// An empty, `|` or `>` right-hand side introduces a nested block.
	if value == "" || value == "|" || value == ">" {
		children, lineEnd, next := p.parseChildren(i+1, node.Level, node.Path())
		if len(children) > 0 {
			node.IsStructuralParent = true
			node.Type = TypeObject
			node.Children = children
			node.LineEnd = lineEnd
			return node, next
		}
		// A bare header with nothing under it is a plain null leaf.
		node.Type = TypeNull
		return node, i + 1
	}

	node.Value, node.Type = decodeScalar(value)
	return node, i + 1
}

// parseChildren consumes the contiguous run of lines more indented
// than parentLevel. Blank and comment lines inside the run are skipped
// rather than treated as boundaries; a comment that ends the run is
// left for the section pass.
func (p *parser) parseChildren(start, parentLevel int, parentPath string) ([]*Node, int, int) {
	var children []*Node
	lineEnd := start - 1
	i := start
	for i < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			if !p.blockContinues(i, parentLevel) {
				break
			}
			i++
			continue
		}
		if indentLevel(p.lines[i]) <= parentLevel {
			break
		}
		if !isKeyLine(trimmed) {
			i++
			continue
		}
		child, next := p.parseNode(i, parentPath)
		children = append(children, child)
		lineEnd = child.LineEnd
		i = next
	}
	return children, lineEnd, i
}

// blockContinues reports whether the next content line after index
// from is still more indented than parentLevel.
func (p *parser) blockContinues(from, parentLevel int) bool {
	for j := from; j < len(p.lines); j++ {
		trimmed := strings.TrimSpace(p.lines[j])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return indentLevel(p.lines[j]) > parentLevel
	}
	return false
}

// isKeyLine reports whether a trimmed line is a key line: it contains
// a colon and the part before it is non-empty with no internal space.
func isKeyLine(trimmed string) bool {
	colon := strings.Index(trimmed, ":")
	if colon <= 0 {
		return false
	}
	return !strings.ContainsAny(trimmed[:colon], " \t")
}

// indentLevel counts indentation units: a space is one, a tab two.
func indentLevel(line string) int {
	level := 0
	for _, r := range line {
		switch r {
		case ' ':
			level++
		case '\t':
			level += 2
		default:
			return level
		}
	}
	return level
}

// splitInlineComment separates a trailing comment from the value
// portion. A `#` only starts a comment when it opens the value or
// follows whitespace, so hashes inside a value survive.
func splitInlineComment(rhs string) (string, string) {
	for idx := 0; idx < len(rhs); idx++ {
		if rhs[idx] != '#' {
			continue
		}
		if idx == 0 || rhs[idx-1] == ' ' || rhs[idx-1] == '\t' {
			comment := strings.TrimSpace(strings.TrimPrefix(rhs[idx:], "#"))
			return rhs[:idx], comment
		}
	}
	return rhs, ""
}

// decodeScalar decodes one right-hand side with the YAML loader and
// maps the result onto the closed type set. Undecodable input keeps
// its raw trimmed string.
func decodeScalar(raw string) (any, ValueType) {
	var decoded any
	if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw, TypeString
	}
	switch v := decoded.(type) {
	case nil:
		return nil, TypeNull
	case bool:
		return v, TypeBoolean
	case int:
		return v, TypeNumber
	case int64:
		return v, TypeNumber
	case uint64:
		return v, TypeNumber
	case float64:
		return v, TypeNumber
	case string:
		return v, TypeString
	case []any:
		return v, TypeArray
	case map[string]any:
		return v, TypeObject
	default:
		return raw, TypeString
	}
}

// sectionHeader derives a human-readable label from a comment line by
// title-casing each word of the comment body.
func sectionHeader(comment string) string {
	body := strings.TrimSpace(strings.TrimLeft(comment, "#"))
	words := strings.Fields(body)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// duplicateWarnings surfaces sibling nodes sharing a dotted path at
// the same nesting depth. Diagnostic only; the structure is returned
// unchanged.
func duplicateWarnings(flat []*Node) []string {
	counts := make(map[string]int)
	for _, node := range flat {
		counts[duplicateKey(node)]++
	}

	var warnings []string
	reported := make(map[string]bool)
	for _, node := range flat {
		key := duplicateKey(node)
		if counts[key] > 1 && !reported[key] {
			reported[key] = true
			warnings = append(warnings,
				fmt.Sprintf("duplicate key %q at indent %d", node.Path(), node.Level))
		}
	}
	return warnings
}

func duplicateKey(node *Node) string {
	return fmt.Sprintf("%s@%d", node.Path(), node.Level)
}
