package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/ncruces/zenity"
)

// ErrPickerCanceled is returned when the user dismisses the file dialog.
var ErrPickerCanceled = errors.New("file selection canceled")

// PickImage opens a native dialog restricted to accepted sketch images.
func PickImage(ctx context.Context) (string, error) {
	path, err := zenity.SelectFile(
		zenity.Context(ctx),
		zenity.Title("Select a sketch"),
		zenity.FileFilters{
			{
				Name:     "Sketch images",
				Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.webp"},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrPickerCanceled
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return path, nil
}
