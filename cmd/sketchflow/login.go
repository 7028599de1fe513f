package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fpang/sketchflow/internal/auth"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	loginProviderFlag string
	loginWaitFlag     time.Duration
)

// ErrAuthDisabled is returned when no identity provider is configured.
var ErrAuthDisabled = errors.New("sign-in is not configured (set SUPABASE_URL and SUPABASE_ANON_KEY)")

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with an OAuth provider",
	Long: `Login opens a local callback server, prints the provider sign-in URL and
waits for the browser to come back. The session is stored with 0600
permissions and reused by later commands.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newApp(ctx, "login")
		defer a.close()

		s, err := runLoginFlow(ctx, a, loginProviderFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Sign-in failed")
		}
		fmt.Printf("Signed in as %s\n", displayName(s))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := newApp(ctx, "logout")
		defer a.close()

		if err := a.auth.SignOut(ctx); err != nil {
			log.Fatal().Err(err).Msg("Sign-out failed")
		}
		fmt.Println("Signed out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and backend status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a := newApp(ctx, "whoami")
		defer a.close()

		if err := a.client.Health(ctx); err != nil {
			fmt.Printf("Backend:  %s (unreachable: %v)\n", a.client.BaseURL(), err)
		} else {
			fmt.Printf("Backend:  %s (ok)\n", a.client.BaseURL())
		}

		if !a.cfg.AuthConfigured() {
			fmt.Println("Identity: not configured, requests are anonymous")
			return
		}
		s, err := a.auth.GetSession(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read session")
		}
		if s == nil {
			fmt.Println("Identity: signed out")
			return
		}
		name := displayName(s)
		if sp, ok := a.auth.(*auth.SupabaseProvider); ok {
			u, err := sp.FetchUser(ctx)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("Could not refresh user profile")
			case u != nil:
				name = displayName(&auth.Session{User: *u})
			}
		}
		fmt.Printf("Identity: %s\n", name)
		if !s.ExpiresAt.IsZero() {
			fmt.Printf("Expires:  %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginProviderFlag, "provider", "github", "OAuth provider to sign in with")
	loginCmd.Flags().DurationVar(&loginWaitFlag, "wait", 5*time.Minute, "How long to wait for the browser callback")
	convertCmd.Flags().StringVar(&loginProviderFlag, "provider", "github", "OAuth provider used with --login")
}

// runLoginFlow serves the callback route until one sign-in attempt completes
// or the wait expires.
func runLoginFlow(ctx context.Context, a *app, provider string) (*auth.Session, error) {
	completer, ok := a.auth.(auth.Completer)
	if !ok {
		return nil, ErrAuthDisabled
	}

	type result struct {
		session *auth.Session
		err     error
	}
	done := make(chan result, 1)
	handler := auth.NewCallbackHandler(completer, a.store, func(s *auth.Session, err error) {
		select {
		case done <- result{s, err}:
		default:
		}
	})

	ln, err := net.Listen("tcp", a.cfg.CallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("start callback server on %s: %w", a.cfg.CallbackAddr, err)
	}
	srv := &http.Server{
		Handler:      loginMux(a.cfg.CallbackPath, handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Callback server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	signInURL, err := a.auth.SignInWithOAuth(ctx, provider, a.cfg.CallbackURL())
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", provider).Str("callback", a.cfg.CallbackURL()).Msg("Waiting for sign-in")
	fmt.Fprintf(os.Stderr, "\n  Open this URL to sign in:\n  %s\n\n", signInURL)

	wait := loginWaitFlag
	if wait <= 0 {
		wait = 5 * time.Minute
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case r := <-done:
		// let the redirect response flush before shutdown
		time.Sleep(200 * time.Millisecond)
		return r.session, r.err
	case <-timer.C:
		return nil, fmt.Errorf("no sign-in callback within %s", wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// loginMux routes the callback path to h and everything else, including the
// post-sign-in return path, to a static landing page.
func loginMux(callbackPath string, h http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(callbackPath, h)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, "<!doctype html><p>Signed in. You can close this tab and return to the terminal.</p>")
	})
	return mux
}

func displayName(s *auth.Session) string {
	if s == nil {
		return "(unknown)"
	}
	if s.User.Email != "" {
		return s.User.Email
	}
	if s.User.ID != "" {
		return s.User.ID
	}
	return "(unknown)"
}
