// Package render turns generated diagram source into a preview outcome.
//
// Each output format has an Adapter. Adapters never return errors: a parse
// failure, a remote viewer problem, or a failed image fetch is reported as an
// Outcome with StatusError so that a preview problem can never affect the
// conversion session that produced the source.
package render

import (
	"context"
	"fmt"
)

// Status is the state of one render invocation.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// FallbackMessage is shown when an adapter fails in an unexpected way.
const FallbackMessage = "Preview unavailable"

// Outcome is the result of one adapter invocation.
type Outcome struct {
	Status Status
	// Message explains a StatusError outcome.
	Message string
	// EscapeHatchURL opens the same content in a hosted external editor.
	EscapeHatchURL string
	// Empty marks a Ready outcome for blank input: there is nothing to display.
	Empty bool

	// SVG is the rendered visual fragment, replacing any previous one.
	SVG []byte
	// ImageURL is the remote image the fragment was fetched from, if any.
	ImageURL string
	// ViewerURL is the embeddable remote viewer for formats without local rendering.
	ViewerURL string
}

// Adapter renders one source format.
type Adapter interface {
	// Name identifies the format in logs and metrics.
	Name() string
	Render(ctx context.Context, source string) Outcome
}

func loading() Outcome {
	return Outcome{Status: StatusLoading}
}

func nothingToDisplay() Outcome {
	return Outcome{Status: StatusReady, Empty: true}
}

func failed(msg, escapeHatch string) Outcome {
	return Outcome{Status: StatusError, Message: msg, EscapeHatchURL: escapeHatch}
}
