package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fpang/sketchflow/internal/artifact"
	"github.com/fpang/sketchflow/internal/events"
	"github.com/fpang/sketchflow/internal/metrics"
	"github.com/fpang/sketchflow/internal/redirect"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the hard limit on one conversion request.
const DefaultTimeout = 300 * time.Second

// TokenSource yields the bearer token for outbound requests. An empty token
// with a nil error means the caller is anonymous.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTokenSource attaches bearer tokens from ts to each submission.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Controller) { c.tokens = ts }
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Controller owns the live conversion session. All methods are safe for
// concurrent use; transitions are serialized by an internal mutex.
type Controller struct {
	backend Backend
	tokens  TokenSource
	timeout time.Duration

	mu       sync.Mutex
	session  Session
	attempt  uint64
	cancel   context.CancelFunc
	canceled bool

	changes events.Bus[StateChange]
}

// NewController returns an Idle controller that submits through backend.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		timeout: DefaultTimeout,
		session: Session{State: StateIdle, Format: DefaultFormat},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn for every state transition.
func (c *Controller) Subscribe(fn func(StateChange)) (unsubscribe func()) {
	return c.changes.Subscribe(fn)
}

// Session returns a copy of the live session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copySession()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// SelectArtifact validates a and starts a fresh session around it, clearing
// notes and format. It is legal while Idle or Uploading; a completed or failed
// session must be Reset first. A rejected artifact leaves the session unchanged.
func (c *Controller) SelectArtifact(a *artifact.Artifact) error {
	if a == nil {
		return ErrNoArtifact
	}
	if err := artifact.Validate(a); err != nil {
		return err
	}

	c.mu.Lock()
	from := c.session.State
	if from != StateIdle && from != StateUploading {
		c.mu.Unlock()
		return fmt.Errorf("select artifact while %s: %w", from, ErrInvalidState)
	}
	c.session = Session{
		State:    StateUploading,
		Artifact: a.Clone(),
		Format:   DefaultFormat,
	}
	ev := c.changeLocked(from)
	c.mu.Unlock()

	log.Info().
		Str("name", a.Name).
		Str("mime_type", a.MIMEType).
		Int64("size_bytes", a.Size()).
		Msg("Artifact selected")
	c.changes.Publish(ev)
	return nil
}

// UpdateNotes replaces the user context text. Legal only while Uploading.
func (c *Controller) UpdateNotes(notes string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateUploading {
		return fmt.Errorf("update notes while %s: %w", c.session.State, ErrInvalidState)
	}
	c.session.Notes = notes
	return nil
}

// UpdateFormat changes the requested output format. Legal only while Uploading.
func (c *Controller) UpdateFormat(f Format) error {
	if !f.Valid() {
		return fmt.Errorf("unknown format %q", f)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateUploading {
		return fmt.Errorf("update format while %s: %w", c.session.State, ErrInvalidState)
	}
	c.session.Format = f
	return nil
}

// Submit sends the session to the backend and blocks until it completes,
// fails, times out, or is canceled. Exactly one request is issued per call;
// a second Submit while one is in flight returns ErrSubmitInFlight without
// touching the network.
//
// The returned error is nil when the session reached Completed. Otherwise it
// is the *Failure recorded on the session, ErrSuperseded when Reset ran
// while the request was in flight, or a guard error.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch c.session.State {
	case StateProcessing:
		c.mu.Unlock()
		return ErrSubmitInFlight
	case StateUploading:
	default:
		state := c.session.State
		c.mu.Unlock()
		return fmt.Errorf("submit while %s: %w", state, ErrInvalidState)
	}
	if c.session.Artifact == nil {
		c.mu.Unlock()
		return ErrNoArtifact
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.attempt++
	attempt := c.attempt
	c.cancel = cancel
	c.canceled = false
	c.session.State = StateProcessing
	req := &Request{
		Artifact: c.session.Artifact,
		Format:   c.session.Format,
		Notes:    c.session.Notes,
	}
	ev := c.changeLocked(StateUploading)
	c.mu.Unlock()
	defer cancel()

	c.changes.Publish(ev)

	req.Token = c.accessToken(reqCtx)
	start := time.Now()
	resp, err := c.backend.Convert(reqCtx, req)

	c.mu.Lock()
	if attempt != c.attempt || c.session.State != StateProcessing {
		c.mu.Unlock()
		log.Debug().Uint64("attempt", attempt).Msg("Discarding result of superseded conversion")
		return ErrSuperseded
	}
	c.cancel = nil
	if err != nil {
		err = c.classifyLocked(reqCtx, err)
	}
	failure := c.finishLocked(resp, err)
	ev = c.changeLocked(StateProcessing)
	c.mu.Unlock()

	recordAttempt(req.Format, start, ev.Session)
	c.changes.Publish(ev)
	if failure != nil {
		return failure
	}
	return nil
}

// Cancel aborts the in-flight request, if any. The pending Submit moves the
// session to Failed with FailureCanceled.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateProcessing || c.cancel == nil {
		return
	}
	c.canceled = true
	c.cancel()
}

// Reset clears every field and returns to Idle. It is always legal; an
// in-flight request is aborted and its result discarded.
func (c *Controller) Reset() {
	c.mu.Lock()
	from := c.session.State
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attempt++
	c.canceled = false
	c.session = Session{State: StateIdle, Format: DefaultFormat}
	ev := c.changeLocked(from)
	c.mu.Unlock()

	if from != StateIdle {
		log.Debug().Str("from", from.String()).Msg("Conversion session reset")
		c.changes.Publish(ev)
	}
}

// Snapshot captures a completed session for redirect survival.
func (c *Controller) Snapshot() (*redirect.ResultSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateCompleted {
		return nil, fmt.Errorf("snapshot while %s: %w", c.session.State, ErrInvalidState)
	}
	return &redirect.ResultSnapshot{
		State:  redirect.StateCompleted,
		Format: string(c.session.Format),
		Source: c.session.ResultSource,
		JobID:  c.session.ResultJobID,
	}, nil
}

// Restore rehydrates a completed session from snap. It is legal only while
// Idle. The restored session has no artifact.
func (c *Controller) Restore(snap *redirect.ResultSnapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	format, err := ParseFormat(snap.Format)
	if err != nil {
		return err
	}
	if snap.Source == "" {
		return errors.New("snapshot has no result source")
	}

	c.mu.Lock()
	if c.session.State != StateIdle {
		state := c.session.State
		c.mu.Unlock()
		return fmt.Errorf("restore while %s: %w", state, ErrInvalidState)
	}
	c.session = Session{
		State:        StateCompleted,
		Format:       format,
		ResultSource: snap.Source,
		ResultJobID:  snap.JobID,
	}
	ev := c.changeLocked(StateIdle)
	c.mu.Unlock()

	log.Info().Str("format", string(format)).Str("jobId", snap.JobID).Msg("Conversion result restored")
	c.changes.Publish(ev)
	return nil
}

func (c *Controller) accessToken(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Access token unavailable, submitting unauthenticated")
		return ""
	}
	return token
}

// classifyLocked maps context errors to the caller's intent: Cancel wins over
// the deadline, and the deadline wins over whatever the transport reported.
func (c *Controller) classifyLocked(ctx context.Context, err error) error {
	if c.canceled {
		return &Failure{Kind: FailureCanceled, Message: "conversion canceled", Err: err}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !IsKind(err, FailureTimeout) {
		return &Failure{Kind: FailureTimeout, Message: fmt.Sprintf("conversion timed out after %s", c.timeout), Err: err}
	}
	return err
}

func (c *Controller) finishLocked(resp *Response, err error) *Failure {
	c.canceled = false
	if err != nil {
		var f *Failure
		if !errors.As(err, &f) {
			f = &Failure{Kind: FailureNetwork, Message: "conversion request failed", Err: err}
		}
		return c.failLocked(f)
	}
	if resp == nil {
		return c.failLocked(&Failure{Kind: FailureDecode, Message: "empty conversion response"})
	}

	switch strings.ToLower(resp.Status) {
	case "completed":
		if resp.Result == nil || resp.Result.Code == "" {
			return c.failLocked(&Failure{Kind: FailureBackend, Message: "backend returned an empty result"})
		}
		jobID := resp.Result.JobID
		if jobID == "" {
			jobID = resp.JobID
		}
		c.session.State = StateCompleted
		c.session.ResultSource = resp.Result.Code
		c.session.ResultJobID = jobID
		c.session.Failure = nil
		log.Info().
			Str("format", string(c.session.Format)).
			Str("jobId", jobID).
			Int("source_bytes", len(resp.Result.Code)).
			Msg("Conversion completed")
		return nil
	case "failed":
		msg := resp.Error
		if msg == "" {
			msg = "conversion failed"
		}
		return c.failLocked(&Failure{Kind: FailureBackend, Message: msg})
	default:
		return c.failLocked(&Failure{Kind: FailureBackend, Message: fmt.Sprintf("unexpected conversion status %q", resp.Status)})
	}
}

func (c *Controller) failLocked(f *Failure) *Failure {
	c.session.State = StateFailed
	c.session.ResultSource = ""
	c.session.ResultJobID = ""
	c.session.Failure = f
	log.Warn().
		Str("kind", f.Kind.String()).
		Int("status_code", f.StatusCode).
		Str("reason", f.Message).
		Msg("Conversion failed")
	return f
}

func (c *Controller) changeLocked(from State) StateChange {
	return StateChange{From: from, To: c.session.State, Session: c.copySession()}
}

func (c *Controller) copySession() Session {
	s := c.session
	s.Artifact = s.Artifact.Clone()
	if s.Failure != nil {
		f := *s.Failure
		s.Failure = &f
	}
	return s
}

func recordAttempt(format Format, start time.Time, s Session) {
	result := "completed"
	if s.Failure != nil {
		result = s.Failure.Kind.String()
	}
	metrics.New(metrics.Namespace).
		Dimension("Format", format.WireName()).
		Dimension("Result", result).
		Since("ConversionLatencyMs", start).
		Count("ConversionResult").
		Flush()
}
