package render

import (
	"fmt"
	"strings"
)

// mermaidKeywords are the diagram types accepted on the header line.
var mermaidKeywords = map[string]bool{
	"flowchart":          true,
	"graph":              true,
	"sequenceDiagram":    true,
	"classDiagram":       true,
	"classDiagram-v2":    true,
	"stateDiagram":       true,
	"stateDiagram-v2":    true,
	"erDiagram":          true,
	"journey":            true,
	"gantt":              true,
	"pie":                true,
	"gitGraph":           true,
	"mindmap":            true,
	"timeline":           true,
	"quadrantChart":      true,
	"requirementDiagram": true,
	"C4Context":          true,
	"C4Container":        true,
	"C4Component":        true,
	"C4Dynamic":          true,
	"C4Deployment":       true,
	"sankey-beta":        true,
	"xychart-beta":       true,
	"block-beta":         true,
	"packet-beta":        true,
	"architecture-beta":  true,
	"kanban":             true,
}

var flowchartDirections = map[string]bool{
	"TB": true, "TD": true, "BT": true, "RL": true, "LR": true,
}

// MermaidHeader is the parsed diagram declaration.
type MermaidHeader struct {
	Keyword   string
	Direction string
	Line      int
}

// SyntaxError is a parse failure with a 1-based line number.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Parse error on line %d: %s", e.Line, e.Msg)
}

// ParseMermaidHeader finds the diagram declaration, skipping blank lines,
// %% comments and directives, and a leading --- front matter block.
func ParseMermaidHeader(source string) (*MermaidHeader, error) {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) && strings.TrimSpace(lines[i]) == "---" {
		start := i + 1
		i++
		for i < len(lines) && strings.TrimSpace(lines[i]) != "---" {
			i++
		}
		if i == len(lines) {
			return nil, &SyntaxError{Line: start, Msg: "unterminated front matter"}
		}
		i++
	}

	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		return parseDeclaration(line, i+1)
	}
	return nil, &SyntaxError{Line: len(lines), Msg: "no diagram type found"}
}

func parseDeclaration(line string, lineNo int) (*MermaidHeader, error) {
	fields := strings.Fields(strings.ReplaceAll(line, ";", " "))
	if len(fields) == 0 {
		return nil, &SyntaxError{Line: lineNo, Msg: "no diagram type found"}
	}
	keyword := fields[0]
	if !mermaidKeywords[keyword] {
		return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("unknown diagram type %q", keyword)}
	}

	h := &MermaidHeader{Keyword: keyword, Line: lineNo}
	if keyword != "graph" && keyword != "flowchart" {
		return h, nil
	}
	if len(fields) < 2 {
		return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("%s requires a direction (TB, TD, BT, RL, LR)", keyword)}
	}
	dir := strings.ToUpper(fields[1])
	if !flowchartDirections[dir] {
		return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("invalid direction %q", fields[1])}
	}
	h.Direction = dir
	return h, nil
}
