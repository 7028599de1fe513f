package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fpang/sketchflow/internal/config"
	"github.com/fpang/sketchflow/internal/redirect"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// fakeGoTrue is a minimal stand-in for the Supabase auth server.
type fakeGoTrue struct {
	mu        sync.Mutex
	verifiers []string
	access    string
	refreshes int
	logouts   int
}

func (f *fakeGoTrue) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"missing apikey"}`))
			return
		}

		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "pkce":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["auth_code"] != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"invalid flow state"}`))
				return
			}
			f.verifiers = append(f.verifiers, body["code_verifier"])
			writeToken(w, f.access, "refresh-1", time.Now().Add(time.Hour))
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
			f.refreshes++
			writeToken(w, f.access+"-refreshed", "refresh-2", time.Now().Add(time.Hour))
		case r.URL.Path == "/auth/v1/logout":
			f.logouts++
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/auth/v1/user":
			_ = json.NewEncoder(w).Encode(User{ID: "user-1", Email: "a@example.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeGoTrue) counts() (refreshes, logouts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.logouts
}

func (f *fakeGoTrue) seenVerifiers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.verifiers...)
}

func writeToken(w http.ResponseWriter, access, refresh string, exp time.Time) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user":          map[string]string{"id": "user-1", "email": "a@example.com"},
	})
}

func newTestProvider(t *testing.T) (*SupabaseProvider, *fakeGoTrue, string) {
	t.Helper()
	fake := &fakeGoTrue{access: "access-1"}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	return NewSupabase(srv.URL, "anon", NewFileStore(path)), fake, path
}

func TestNewReturnsNoopWithoutConfig(t *testing.T) {
	p := New(&config.Config{SupabaseURL: "https://x.supabase.co"})
	assert.IsType(t, NoopProvider{}, p)

	p = New(&config.Config{SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "anon", SessionFile: filepath.Join(t.TempDir(), "s.json")})
	assert.IsType(t, &SupabaseProvider{}, p)
}

func TestNoopProviderIsInert(t *testing.T) {
	ctx := context.Background()
	var p Provider = NoopProvider{}

	s, err := p.GetSession(ctx)
	assert.NoError(t, err)
	assert.Nil(t, s)

	called := false
	unsubscribe := p.OnSessionChange(func(SessionEvent) { called = true })
	unsubscribe()
	unsubscribe()

	u, err := p.SignInWithOAuth(ctx, "google", "http://127.0.0.1/cb")
	assert.NoError(t, err)
	assert.Empty(t, u)
	assert.NoError(t, p.SignOut(ctx))

	tok, err := p.GetAccessToken(ctx)
	assert.NoError(t, err)
	assert.Empty(t, tok)
	assert.False(t, called)
}

func TestSignInWithOAuthBuildsPKCEURL(t *testing.T) {
	p, _, _ := newTestProvider(t)

	raw, err := p.SignInWithOAuth(context.Background(), "github", "http://127.0.0.1:8765/auth/callback")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/auth/v1/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "github", q.Get("provider"))
	assert.Equal(t, "http://127.0.0.1:8765/auth/callback", q.Get("redirect_to"))
	assert.Equal(t, "s256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(p.verifier), q.Get("code_challenge"))

	_, err = p.SignInWithOAuth(context.Background(), "", "x")
	assert.Error(t, err)
}

func TestExchangeCodePersistsSession(t *testing.T) {
	ctx := context.Background()
	p, fake, path := newTestProvider(t)

	var events []SessionEvent
	unsubscribe := p.OnSessionChange(func(ev SessionEvent) { events = append(events, ev) })
	defer unsubscribe()

	_, err := p.ExchangeCode(ctx, "good-code")
	assert.ErrorIs(t, err, ErrNoPendingSignIn)

	_, err = p.SignInWithOAuth(ctx, "google", "http://127.0.0.1/cb")
	require.NoError(t, err)
	verifier := p.verifier

	s, err := p.ExchangeCode(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", s.AccessToken)
	assert.Equal(t, "user-1", s.User.ID)
	assert.Equal(t, []string{verifier}, fake.seenVerifiers())

	require.Len(t, events, 1)
	assert.Equal(t, EventSignedIn, events[0].Type)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	reloaded := NewSupabase(p.baseURL, "anon", NewFileStore(path))
	got, err := reloaded.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)
}

func TestExchangeCodeFailure(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)
	_, err := p.SignInWithOAuth(ctx, "google", "http://127.0.0.1/cb")
	require.NoError(t, err)

	_, err = p.ExchangeCode(ctx, "bad-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flow state")

	s, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestGetAccessTokenRefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	p, fake, _ := newTestProvider(t)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	_, err := p.setSession(&Session{
		AccessToken:  "old",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(30 * time.Second),
		User:         User{ID: "user-1"},
	}, EventSignedIn)
	require.NoError(t, err)

	tok, err := p.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1-refreshed", tok)
	refreshes, _ := fake.counts()
	assert.Equal(t, 1, refreshes)
}

func TestGetAccessTokenReusesFreshToken(t *testing.T) {
	ctx := context.Background()
	p, fake, _ := newTestProvider(t)
	_, err := p.setSession(&Session{AccessToken: "fresh", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}, EventSignedIn)
	require.NoError(t, err)

	tok, err := p.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	refreshes, _ := fake.counts()
	assert.Zero(t, refreshes)
}

func TestGetAccessTokenSignedOut(t *testing.T) {
	p, _, _ := newTestProvider(t)
	tok, err := p.GetAccessToken(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSetSessionFromImplicitTokens(t *testing.T) {
	p, _, _ := newTestProvider(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, "user-9", "z@example.com", exp)

	s, err := p.SetSession(context.Background(), access, "r-9")
	require.NoError(t, err)
	assert.Equal(t, "user-9", s.User.ID)
	assert.Equal(t, "z@example.com", s.User.Email)
	assert.True(t, exp.Equal(s.ExpiresAt))
	assert.Equal(t, "r-9", s.RefreshToken)

	_, err = p.SetSession(context.Background(), "not-a-jwt", "")
	assert.Error(t, err)
}

func TestSignOutClearsSession(t *testing.T) {
	ctx := context.Background()
	p, fake, path := newTestProvider(t)
	_, err := p.setSession(&Session{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}, EventSignedIn)
	require.NoError(t, err)

	var last SessionEvent
	defer p.OnSessionChange(func(ev SessionEvent) { last = ev })()

	require.NoError(t, p.SignOut(ctx))
	_, logouts := fake.counts()
	assert.Equal(t, 1, logouts)
	assert.Equal(t, EventSignedOut, last.Type)
	assert.Nil(t, last.Session)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	s, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, p.SignOut(ctx))
	_, logouts = fake.counts()
	assert.Equal(t, 1, logouts)
}

func TestFetchUser(t *testing.T) {
	p, _, _ := newTestProvider(t)
	u, err := p.FetchUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = p.setSession(&Session{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}, EventSignedIn)
	require.NoError(t, err)
	u, err = p.FetchUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}

func TestFileStoreIgnoresInsecureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"x"}`), 0o644))

	s, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestFileStoreMissingAndClear(t *testing.T) {
	st := NewFileStore(filepath.Join(t.TempDir(), "none.json"))
	s, err := st.Load()
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.NoError(t, st.Clear())
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Session{}).ExpiresWithin(time.Minute, now))
	assert.True(t, (&Session{ExpiresAt: now.Add(30 * time.Second)}).ExpiresWithin(time.Minute, now))
	assert.False(t, (&Session{ExpiresAt: now.Add(2 * time.Minute)}).ExpiresWithin(time.Minute, now))
}

type fakeCompleter struct {
	codes  []string
	tokens []string
}

func (f *fakeCompleter) ExchangeCode(_ context.Context, code string) (*Session, error) {
	f.codes = append(f.codes, code)
	return &Session{AccessToken: "a", User: User{ID: "u"}}, nil
}

func (f *fakeCompleter) SetSession(_ context.Context, access, refresh string) (*Session, error) {
	f.tokens = append(f.tokens, access+"/"+refresh)
	return &Session{AccessToken: access, User: User{ID: "u"}}, nil
}

func TestCallbackCodeExchangeRedirectsOnce(t *testing.T) {
	ctx := context.Background()
	st := redirect.NewMemoryStore()
	require.NoError(t, redirect.SaveReturnPath(ctx, st, "/result"))

	c := &fakeCompleter{}
	var done int
	h := NewCallbackHandler(c, st, func(s *Session, err error) {
		require.NoError(t, err)
		done++
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/result", rec.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, c.codes)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=def", nil))
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 2, done)
}

func TestCallbackImplicitFlow(t *testing.T) {
	st := redirect.NewMemoryStore()
	c := &fakeCompleter{}
	h := NewCallbackHandler(c, st, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "window.location.hash")
	assert.Empty(t, c.tokens)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?access_token=tok&refresh_token=ref&token_type=bearer", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, []string{"tok/ref"}, c.tokens)
}

func TestCallbackProviderError(t *testing.T) {
	var gotErr error
	h := NewCallbackHandler(&fakeCompleter{}, redirect.NewMemoryStore(), func(_ *Session, err error) { gotErr = err })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&error_description=%3Cb%3Edenied%3C%2Fb%3E", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;denied&lt;/b&gt;")
	require.Error(t, gotErr)
	assert.True(t, strings.Contains(gotErr.Error(), "denied"))
}

func TestCallbackWithSupabaseProvider(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestProvider(t)
	st := redirect.NewMemoryStore()
	require.NoError(t, redirect.SaveReturnPath(ctx, st, "/convert"))
	_, err := p.SignInWithOAuth(ctx, "google", "http://127.0.0.1/cb")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	NewCallbackHandler(p, st, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good-code", nil))
	assert.Equal(t, "/convert", rec.Header().Get("Location"))

	tok, err := p.GetAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
}
