package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/fpang/sketchflow/internal/redirect"
	"github.com/rs/zerolog/log"
)

// Completer finishes a sign-in from callback parameters.
type Completer interface {
	ExchangeCode(ctx context.Context, code string) (*Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
}

// fragmentRelay re-requests the callback with the URL fragment as the query
// so that implicit-flow tokens reach the server.
const fragmentRelay = `<!doctype html>
<html><head><meta charset="utf-8"><title>Signing in</title></head>
<body><p id="msg">Completing sign-in...</p>
<script>
var h = window.location.hash.substring(1);
if (h) {
  window.location.replace(window.location.pathname + "?" + h);
} else {
  document.getElementById("msg").textContent = "Sign-in response was empty. Return to the terminal and try again.";
}
</script></body></html>`

// CallbackHandler completes the OAuth handshake on the fixed callback route
// and then redirects to the stored return path, consuming it.
type CallbackHandler struct {
	completer Completer
	store     redirect.Store
	done      func(*Session, error)
}

// NewCallbackHandler returns a handler that reports each completed attempt to
// done. done may be nil.
func NewCallbackHandler(c Completer, store redirect.Store, done func(*Session, error)) *CallbackHandler {
	return &CallbackHandler{completer: c, store: store, done: done}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		s   *Session
		err error
	)
	switch {
	case q.Get("error") != "":
		msg := q.Get("error_description")
		if msg == "" {
			msg = q.Get("error")
		}
		err = fmt.Errorf("identity provider returned an error: %s", msg)
	case q.Get("code") != "":
		s, err = h.completer.ExchangeCode(ctx, q.Get("code"))
	case q.Get("access_token") != "":
		s, err = h.completer.SetSession(ctx, q.Get("access_token"), q.Get("refresh_token"))
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprint(w, fragmentRelay)
		return
	}

	if err != nil {
		log.Warn().Err(err).Msg("Sign-in callback failed")
		h.finish(nil, err)
		status := http.StatusBadGateway
		if errors.Is(err, ErrNoPendingSignIn) || q.Get("error") != "" {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, "<!doctype html><p>Sign-in failed: %s</p>", html.EscapeString(err.Error()))
		return
	}

	path, perr := redirect.TakeReturnPath(ctx, h.store)
	if perr != nil {
		log.Warn().Err(perr).Msg("Failed to read return path, using /")
	}
	log.Debug().Str("returnPath", path).Msg("Sign-in callback complete")
	h.finish(s, nil)
	http.Redirect(w, r, path, http.StatusFound)
}

func (h *CallbackHandler) finish(s *Session, err error) {
	if h.done != nil {
		h.done(s, err)
	}
}
