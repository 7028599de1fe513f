// Package auth is the boundary to the hosted identity provider. Callers hold
// a Provider; when the provider is not configured they get NoopProvider,
// whose operations all succeed with inert results.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User identifies the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is a signed-in identity with its tokens.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// ExpiresWithin reports whether the access token expires before now+d.
// A zero ExpiresAt is treated as never expiring.
func (s *Session) ExpiresWithin(d time.Duration, now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// EventType names a session change.
type EventType int

const (
	EventSignedIn EventType = iota
	EventSignedOut
	EventTokenRefreshed
)

func (t EventType) String() string {
	switch t {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// SessionEvent is published on every session change. Session is nil after sign-out.
type SessionEvent struct {
	Type    EventType
	Session *Session
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// sessionFromTokens builds a Session from the access token's own claims. The
// signature is not checked here; the backend verifies every token it receives.
func sessionFromTokens(accessToken, refreshToken string) (*Session, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject")
	}
	s := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User:         User{ID: claims.Subject, Email: claims.Email},
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}
