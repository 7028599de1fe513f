package render

import (
	"context"
	"sync"
	"time"

	"github.com/fpang/sketchflow/internal/events"
	"github.com/fpang/sketchflow/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Update is published whenever the displayed outcome changes.
type Update struct {
	Source  string
	Outcome Outcome
}

// Host owns the displayed outcome for one adapter. Every Render supersedes
// the ones before it: a slow render that finishes after a newer one has
// started is dropped, whatever order the completions arrive in.
type Host struct {
	adapter Adapter

	mu      sync.Mutex
	seq     uint64
	source  string
	current Outcome

	updates events.Bus[Update]
}

// NewHost returns a Host rendering through a guarded copy of a.
func NewHost(a Adapter) *Host {
	return &Host{adapter: Guard(a), current: nothingToDisplay()}
}

// Subscribe registers fn for displayed-outcome changes.
func (h *Host) Subscribe(fn func(Update)) (unsubscribe func()) {
	return h.updates.Subscribe(fn)
}

// Current returns the source and outcome on display.
func (h *Host) Current() (string, Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.source, h.current
}

// Render renders source and reports whether its outcome was displayed. A
// false result means a newer Render started before this one finished.
func (h *Host) Render(ctx context.Context, source string) (Outcome, bool) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.source = source
	h.current = loading()
	h.mu.Unlock()
	h.updates.Publish(Update{Source: source, Outcome: loading()})

	start := time.Now()
	out := h.adapter.Render(ctx, source)

	h.mu.Lock()
	if seq != h.seq {
		h.mu.Unlock()
		log.Debug().Str("adapter", h.adapter.Name()).Uint64("seq", seq).Msg("Dropping superseded render")
		return out, false
	}
	h.current = out
	h.mu.Unlock()

	event := log.Debug()
	if out.Status == StatusError {
		event = log.Warn().Str("reason", out.Message)
	}
	event.Str("adapter", h.adapter.Name()).
		Str("status", out.Status.String()).
		Bool("empty", out.Empty).
		Dur("duration", time.Since(start)).
		Msg("Render finished")

	metrics.New(metrics.Namespace).
		Dimension("Format", h.adapter.Name()).
		Dimension("Status", out.Status.String()).
		Count("RenderResult").
		Since("RenderLatencyMs", start).
		Flush()

	h.updates.Publish(Update{Source: source, Outcome: out})
	return out, true
}
