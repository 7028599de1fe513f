// Package conversion drives one sketch-to-diagram conversion attempt through
// its lifecycle and talks to the conversion backend.
//
// Lifecycle:
//
//	Idle -> Uploading -> Processing -> Completed | Failed
//	Completed | Failed -> Idle (Reset)
//
// The Controller owns the single live Session; nothing else mutates it.
package conversion

import (
	"fmt"
	"strings"

	"github.com/fpang/sketchflow/internal/artifact"
)

// State is a lifecycle state.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateProcessing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Format is the requested output kind.
type Format string

const (
	// FormatDiagramScript is Mermaid-style diagram text.
	FormatDiagramScript Format = "diagram-script"
	// FormatGraphXML is draw.io mxGraph XML.
	FormatGraphXML Format = "graph-xml"
	// FormatUMLScript is PlantUML text.
	FormatUMLScript Format = "uml-script"
)

// DefaultFormat is selected for every new session.
const DefaultFormat = FormatDiagramScript

// Formats lists every supported format in display order.
var Formats = []Format{FormatDiagramScript, FormatGraphXML, FormatUMLScript}

// ParseFormat accepts canonical names and the backend wire names.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "diagram-script", "mermaid":
		return FormatDiagramScript, nil
	case "graph-xml", "drawio", "draw.io":
		return FormatGraphXML, nil
	case "uml-script", "plantuml", "uml":
		return FormatUMLScript, nil
	default:
		return "", fmt.Errorf("unknown format %q: expected one of mermaid, drawio, plantuml", s)
	}
}

// WireName is the value sent in the backend's "format" form field.
func (f Format) WireName() string {
	switch f {
	case FormatDiagramScript:
		return "mermaid"
	case FormatGraphXML:
		return "drawio"
	case FormatUMLScript:
		return "plantuml"
	default:
		return string(f)
	}
}

// FileExtension is the conventional extension for exported source.
func (f Format) FileExtension() string {
	switch f {
	case FormatGraphXML:
		return ".drawio"
	case FormatUMLScript:
		return ".puml"
	default:
		return ".mmd"
	}
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatDiagramScript, FormatGraphXML, FormatUMLScript:
		return true
	}
	return false
}

// Session is a copy of the controller's live conversion attempt.
//
// ResultSource is non-empty if and only if State is StateCompleted, and
// Failure is non-nil if and only if State is StateFailed.
type Session struct {
	State        State
	Artifact     *artifact.Artifact
	Notes        string
	Format       Format
	ResultSource string
	ResultJobID  string
	Failure      *Failure
}

// StateChange is published after every transition.
type StateChange struct {
	From    State
	To      State
	Session Session
}
