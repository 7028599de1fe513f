package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/sketchflow/internal/artifact"
	"github.com/fpang/sketchflow/internal/conversion"
)

// ResolveSketchPath checks that path names a regular file and returns it absolute.
func ResolveSketchPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no sketch selected")
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// DescribeError turns a conversion or validation error into the message shown
// to the user.
func DescribeError(err error) string {
	var verr *artifact.ValidationError
	if errors.As(err, &verr) {
		switch verr.Kind {
		case artifact.KindTooLarge:
			return "The sketch is too large. The maximum size is 10 MB."
		case artifact.KindUnsupportedType:
			return "Unsupported file type. Use a JPEG, PNG, or WebP image."
		case artifact.KindEmpty:
			return "The sketch file is empty."
		}
	}

	var f *conversion.Failure
	if errors.As(err, &f) {
		switch f.Kind {
		case conversion.FailureTimeout:
			return "Conversion Failed: the request timed out. Reset and try again."
		case conversion.FailureCanceled:
			return "Conversion canceled."
		case conversion.FailureNetwork:
			return "Conversion Failed: could not reach the conversion service."
		case conversion.FailureHTTP:
			return fmt.Sprintf("Conversion Failed: %s (HTTP %d).", f.Message, f.StatusCode)
		default:
			return fmt.Sprintf("Conversion Failed: %s.", f.Message)
		}
	}

	switch {
	case errors.Is(err, conversion.ErrSubmitInFlight):
		return "A conversion is already running."
	case errors.Is(err, conversion.ErrNoArtifact):
		return "Select a sketch first."
	}
	return err.Error()
}
