package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fpang/sketchflow/internal/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// RefreshMargin is how close to expiry a token is refreshed before use.
const RefreshMargin = 60 * time.Second

// ErrNoPendingSignIn is returned by ExchangeCode without a prior SignInWithOAuth.
var ErrNoPendingSignIn = errors.New("no sign-in in progress")

// SupabaseProvider talks to a Supabase (GoTrue) auth server.
type SupabaseProvider struct {
	baseURL    string
	anonKey    string
	store      *FileStore
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	loaded   bool
	session  *Session
	verifier string

	changes events.Bus[SessionEvent]
}

// NewSupabase returns a provider for the project at baseURL. store may be nil
// to keep the session in memory only.
func NewSupabase(baseURL, anonKey string, store *FileStore) *SupabaseProvider {
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// tokenResponse is the GoTrue token payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// errorResponse covers the GoTrue error shapes.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (p *SupabaseProvider) OnSessionChange(fn func(SessionEvent)) func() {
	return p.changes.Subscribe(fn)
}

// GetSession returns the session, loading it from the store on first use.
func (p *SupabaseProvider) GetSession(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	if p.session == nil {
		return nil, nil
	}
	s := *p.session
	return &s, nil
}

// SignInWithOAuth generates a PKCE verifier and returns the authorize URL.
func (p *SupabaseProvider) SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("oauth provider is required")
	}
	verifier := oauth2.GenerateVerifier()

	p.mu.Lock()
	p.verifier = verifier
	p.mu.Unlock()

	q := url.Values{
		"provider":              {provider},
		"redirect_to":           {redirectTo},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"s256"},
	}
	log.Debug().Str("provider", provider).Str("redirectTo", redirectTo).Msg("Starting OAuth sign-in")
	return p.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// ExchangeCode completes a PKCE sign-in started by SignInWithOAuth.
func (p *SupabaseProvider) ExchangeCode(ctx context.Context, code string) (*Session, error) {
	p.mu.Lock()
	verifier := p.verifier
	p.mu.Unlock()
	if verifier == "" {
		return nil, ErrNoPendingSignIn
	}

	tok, err := p.tokenRequest(ctx, "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	p.mu.Lock()
	p.verifier = ""
	p.mu.Unlock()

	s, err := p.sessionFromTokenResponse(tok)
	if err != nil {
		return nil, err
	}
	return p.setSession(s, EventSignedIn)
}

// SetSession adopts tokens delivered by the implicit flow.
func (p *SupabaseProvider) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	s, err := sessionFromTokens(accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	return p.setSession(s, EventSignedIn)
}

// GetAccessToken returns the access token, refreshing it first when it
// expires within RefreshMargin.
func (p *SupabaseProvider) GetAccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	p.loadLocked()
	s := p.session
	p.mu.Unlock()

	if s == nil {
		return "", nil
	}
	if !s.ExpiresWithin(RefreshMargin, p.now()) {
		return s.AccessToken, nil
	}

	refreshed, err := p.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Refresh exchanges the refresh token for a new session.
func (p *SupabaseProvider) Refresh(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	p.loadLocked()
	var refreshToken string
	if p.session != nil {
		refreshToken = p.session.RefreshToken
	}
	p.mu.Unlock()

	if refreshToken == "" {
		return nil, fmt.Errorf("session has no refresh token")
	}

	tok, err := p.tokenRequest(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s, err := p.sessionFromTokenResponse(tok)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("userId", s.User.ID).Time("expiresAt", s.ExpiresAt).Msg("Access token refreshed")
	return p.setSession(s, EventTokenRefreshed)
}

// SignOut revokes the session at the provider and clears it locally. The
// local session is cleared even when revocation fails.
func (p *SupabaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.loadLocked()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s == nil {
		return nil
	}

	var revokeErr error
	req, err := p.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err == nil {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
		_, revokeErr = p.do(req)
	} else {
		revokeErr = err
	}
	if revokeErr != nil {
		log.Warn().Err(revokeErr).Msg("Failed to revoke session at provider")
	}

	if p.store != nil {
		if err := p.store.Clear(); err != nil {
			return err
		}
	}
	log.Info().Str("userId", s.User.ID).Msg("Signed out")
	p.changes.Publish(SessionEvent{Type: EventSignedOut})
	return nil
}

// FetchUser asks the provider who the current token belongs to.
func (p *SupabaseProvider) FetchUser(ctx context.Context) (*User, error) {
	token, err := p.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	req, err := p.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	body, err := p.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("parse user: %w", err)
	}
	return &u, nil
}

// loadLocked reads the stored session once. An unreadable file is treated
// as signed out.
func (p *SupabaseProvider) loadLocked() {
	if p.loaded {
		return
	}
	p.loaded = true
	if p.store == nil {
		return
	}
	s, err := p.store.Load()
	if err != nil {
		log.Warn().Err(err).Str("session_file", p.store.Path()).Msg("Ignoring unreadable session file")
		return
	}
	p.session = s
}

func (p *SupabaseProvider) setSession(s *Session, typ EventType) (*Session, error) {
	p.mu.Lock()
	p.loaded = true
	p.session = s
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Save(s); err != nil {
			return nil, err
		}
	}
	if typ == EventSignedIn {
		log.Info().Str("userId", s.User.ID).Str("email", s.User.Email).Msg("Signed in")
	}
	copied := *s
	p.changes.Publish(SessionEvent{Type: typ, Session: &copied})
	return s, nil
}

func (p *SupabaseProvider) sessionFromTokenResponse(tok *tokenResponse) (*Session, error) {
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response")
	}
	s := &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		User:         tok.User,
	}
	switch {
	case tok.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		s.ExpiresAt = p.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	if s.User.ID == "" || s.ExpiresAt.IsZero() {
		if fromJWT, err := sessionFromTokens(tok.AccessToken, tok.RefreshToken); err == nil {
			if s.User.ID == "" {
				s.User = fromJWT.User
			}
			if s.ExpiresAt.IsZero() {
				s.ExpiresAt = fromJWT.ExpiresAt
			}
		}
	}
	return s, nil
}

func (p *SupabaseProvider) tokenRequest(ctx context.Context, grantType string, payload map[string]string) (*tokenResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}
	req, err := p.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type="+url.QueryEscape(grantType), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	return &tok, nil
}

func (p *SupabaseProvider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (p *SupabaseProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil {
			for _, msg := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
				if msg != "" {
					return nil, fmt.Errorf("auth request failed (status %d): %s", resp.StatusCode, msg)
				}
			}
		}
		return nil, fmt.Errorf("auth request failed (status %d): %s", resp.StatusCode, truncate(string(body), 300))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
