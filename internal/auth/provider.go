package auth

import (
	"context"

	"github.com/fpang/sketchflow/internal/config"
	"github.com/rs/zerolog/log"
)

// Provider is the identity operations the rest of the app depends on.
type Provider interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers fn for sign-in, sign-out, and refresh events.
	OnSessionChange(fn func(SessionEvent)) (unsubscribe func())
	// SignInWithOAuth starts an OAuth sign-in with provider and returns the URL
	// to open. The identity provider redirects back to redirectTo.
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	// SignOut ends the session locally and at the provider.
	SignOut(ctx context.Context) error
	// GetAccessToken returns a fresh bearer token, or "" when signed out.
	GetAccessToken(ctx context.Context) (string, error)
}

// New returns a Supabase provider when cfg carries both the endpoint and the
// anon key, and NoopProvider otherwise.
func New(cfg *config.Config) Provider {
	if !cfg.AuthConfigured() {
		log.Debug().Msg("Identity provider not configured, auth disabled")
		return NoopProvider{}
	}
	return NewSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey, NewFileStore(cfg.SessionFile))
}

var (
	_ Provider  = NoopProvider{}
	_ Provider  = (*SupabaseProvider)(nil)
	_ Completer = (*SupabaseProvider)(nil)
)

// NoopProvider is the inert Provider used when auth is not configured.
type NoopProvider struct{}

func (NoopProvider) GetSession(context.Context) (*Session, error) { return nil, nil }

func (NoopProvider) OnSessionChange(func(SessionEvent)) func() { return func() {} }

func (NoopProvider) SignInWithOAuth(context.Context, string, string) (string, error) {
	return "", nil
}

func (NoopProvider) SignOut(context.Context) error { return nil }

func (NoopProvider) GetAccessToken(context.Context) (string, error) { return "", nil }
