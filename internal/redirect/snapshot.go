package redirect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// StateCompleted is the only session state a snapshot may carry.
const StateCompleted = "completed"

// ResultSnapshot is the subset of a completed conversion that is carried
// across a redirect.
type ResultSnapshot struct {
	State  string `json:"state"`
	Format string `json:"format"`
	Source string `json:"source"`
	JobID  string `json:"jobId,omitempty"`
}

// Validate rejects snapshots that could not have come from a completed session.
func (s *ResultSnapshot) Validate() error {
	if s.State != StateCompleted {
		return fmt.Errorf("snapshot state %q is not %q", s.State, StateCompleted)
	}
	if s.Format == "" {
		return fmt.Errorf("snapshot has no format")
	}
	return nil
}

// SaveSnapshot serializes snap under KeySnapshot.
func SaveSnapshot(ctx context.Context, st Store, snap *ResultSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return st.Save(ctx, KeySnapshot, string(data))
}

// TakeSnapshot consumes the pending snapshot, if any. A corrupt snapshot is
// discarded and reported as absent together with the decode error.
func TakeSnapshot(ctx context.Context, st Store) (*ResultSnapshot, error) {
	raw, ok, err := st.Take(ctx, KeySnapshot)
	if err != nil || !ok {
		return nil, err
	}
	var snap ResultSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveReturnPath records where to send the user after sign-in. Only local
// paths are accepted so the callback can never be turned into an open redirect.
func SaveReturnPath(ctx context.Context, st Store, path string) error {
	return st.Save(ctx, KeyReturnPath, SanitizePath(path))
}

// TakeReturnPath consumes the stored return path, defaulting to "/".
func TakeReturnPath(ctx context.Context, st Store) (string, error) {
	p, ok, err := st.Take(ctx, KeyReturnPath)
	if err != nil {
		return "/", err
	}
	if !ok {
		return "/", nil
	}
	return SanitizePath(p), nil
}

// SanitizePath keeps absolute local paths and maps anything else to "/".
func SanitizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return p
}

// BeforeLeave is the synchronous pre-navigation save: it records the return
// path and, when snap is non-nil, the completed result. It must finish
// before the caller hands control to the identity provider.
func BeforeLeave(ctx context.Context, st Store, returnPath string, snap *ResultSnapshot) error {
	if err := SaveReturnPath(ctx, st, returnPath); err != nil {
		return fmt.Errorf("save return path: %w", err)
	}
	if snap == nil {
		return nil
	}
	if err := SaveSnapshot(ctx, st, snap); err != nil {
		return fmt.Errorf("save result snapshot: %w", err)
	}
	log.Debug().Str("format", snap.Format).Str("jobId", snap.JobID).Msg("Result snapshot saved before redirect")
	return nil
}
