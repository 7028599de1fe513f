package conversion

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not legal in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrSubmitInFlight is returned when Submit is called while a request is outstanding.
	ErrSubmitInFlight = errors.New("a conversion request is already in flight")
	// ErrNoArtifact is returned when Submit is called without an artifact.
	ErrNoArtifact = errors.New("no artifact selected")
	// ErrSuperseded is returned by a Submit whose session was reset while in flight.
	ErrSuperseded = errors.New("conversion was reset while in flight")
)

// FailureKind categorizes why a conversion attempt failed.
type FailureKind int

const (
	// FailureNetwork indicates the backend could not be reached.
	FailureNetwork FailureKind = iota
	// FailureHTTP indicates a non-2xx response.
	FailureHTTP
	// FailureBackend indicates a 2xx response with status=failed or an unusable result.
	FailureBackend
	// FailureTimeout indicates the hard request timeout elapsed.
	FailureTimeout
	// FailureCanceled indicates the request was aborted by the caller.
	FailureCanceled
	// FailureDecode indicates the response body could not be parsed.
	FailureDecode
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureHTTP:
		return "http"
	case FailureBackend:
		return "backend"
	case FailureTimeout:
		return "timeout"
	case FailureCanceled:
		return "canceled"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Failure is the terminal reason for a failed session.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	msg := f.Message
	if f.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, f.StatusCode)
	}
	if f.Err != nil {
		return msg + ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsKind reports whether err is a *Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}
