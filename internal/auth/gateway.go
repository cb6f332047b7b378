package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/google"
	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/session"
)

// CallbackFailedMessage is the only text shown when the callback fails.
const CallbackFailedMessage = "Authentication failed. Please try again."

// Login methods used in metrics.
const (
	MethodPassword = "password"
	MethodOAuth    = "oauth"
)

// PendingSignInTTL bounds how long a direct sign-in may stay open.
const PendingSignInTTL = 10 * time.Minute

// ErrMissingCode is returned when the callback carries no code.
var ErrMissingCode = errors.New("callback is missing the authorization code")

// IdentityService is the subset of the identity client the gateway needs.
type IdentityService interface {
	PasswordGrant(ctx context.Context, email, password string) (session.Session, error)
	ExchangeCode(ctx context.Context, authCode, verifier string) (session.Session, error)
	GetUser(ctx context.Context, accessToken string) (session.User, error)
	Logout(ctx context.Context, accessToken string) error
	AuthorizeURL(provider, redirectTo string, scopes []string) (authURL, verifier string)
}

// CodeVerifier is the subset of the backend client the gateway needs.
type CodeVerifier interface {
	VerifyUser(ctx context.Context, code string) (session.TokenPair, error)
	GoogleSignInURL() string
}

// Gateway owns the session lifecycle.
type Gateway struct {
	identity    IdentityService
	backend     CodeVerifier
	store       *session.Store
	callbackURL string

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	now func() time.Time

	mu sync.Mutex
	// pending holds the PKCE verifiers of open direct sign-ins by state.
	pending map[string]pendingSignIn
}

type pendingSignIn struct {
	verifier string
	expires  time.Time
}

// Config holds the dependencies of a Gateway.
type Config struct {
	Identity    IdentityService
	Backend     CodeVerifier
	Store       *session.Store
	CallbackURL string
	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
	Audit       *instrumentation.AuditLogger
}

// NewGateway creates a Gateway.
func NewGateway(cfg Config) *Gateway {
	return &Gateway{
		identity:    cfg.Identity,
		backend:     cfg.Backend,
		store:       cfg.Store,
		callbackURL: cfg.CallbackURL,
		logger:      logging.WithComponent(cfg.Logger, "auth"),
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		now:         time.Now,
		pending:     map[string]pendingSignIn{},
	}
}

// Login signs in with email and password, stores the session and marks
// onboarding as done.
func (g *Gateway) Login(ctx context.Context, email, password string) (session.Session, error) {
	sess, err := g.identity.PasswordGrant(ctx, strings.TrimSpace(email), password)
	if err != nil {
		g.metrics.RecordLogin(ctx, MethodPassword, instrumentation.StatusError)
		g.logger.Info("password login failed", logging.Err(err))
		return session.Session{}, err
	}
	if err := g.establish(ctx, sess); err != nil {
		g.metrics.RecordLogin(ctx, MethodPassword, instrumentation.StatusError)
		return session.Session{}, err
	}

	g.metrics.RecordLogin(ctx, MethodPassword, instrumentation.StatusSuccess)
	g.logger.Info("signed in", logging.UserHash(sess.User.ID), logging.Operation(MethodPassword))
	return sess, nil
}

// GoogleSignInURL returns the page that starts Google sign-in through the
// backend.
func (g *Gateway) GoogleSignInURL() string {
	return g.backend.GoogleSignInURL()
}

// DirectGoogleSignInURL starts Google sign-in against the identity service
// with PKCE, skipping the backend. The callback URL carries a random state
// that selects the verifier; callbacks without a known state go through the
// backend.
func (g *Gateway) DirectGoogleSignInURL() string {
	state := uuid.NewString()
	redirect := g.callbackURL + "?" + url.Values{"state": {state}}.Encode()
	authURL, verifier := g.identity.AuthorizeURL("google", redirect, google.DefaultOAuthScopes)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune()
	g.pending[state] = pendingSignIn{verifier: verifier, expires: g.now().Add(PendingSignInTTL)}
	return authURL
}

// CompleteOAuth turns a callback code into a stored session. state is the
// callback's state parameter and may be empty.
func (g *Gateway) CompleteOAuth(ctx context.Context, code, state string) (session.Session, error) {
	sess, err := g.completeOAuth(ctx, code, state)
	if err != nil {
		g.metrics.RecordLogin(ctx, MethodOAuth, instrumentation.StatusError)
		g.logger.Warn("oauth callback failed", logging.Err(err))
		return session.Session{}, err
	}
	g.metrics.RecordLogin(ctx, MethodOAuth, instrumentation.StatusSuccess)
	g.logger.Info("signed in", logging.UserHash(sess.User.ID), logging.Operation(MethodOAuth))
	return sess, nil
}

// takeVerifier removes and returns the verifier registered for state.
func (g *Gateway) takeVerifier(state string) (string, bool) {
	if state == "" {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prune()
	p, ok := g.pending[state]
	delete(g.pending, state)
	return p.verifier, ok
}

// prune drops expired sign-ins. Callers hold g.mu.
func (g *Gateway) prune() {
	now := g.now()
	for state, p := range g.pending {
		if now.After(p.expires) {
			delete(g.pending, state)
		}
	}
}

func (g *Gateway) completeOAuth(ctx context.Context, code, state string) (session.Session, error) {
	if code == "" {
		return session.Session{}, ErrMissingCode
	}

	var sess session.Session
	if verifier, ok := g.takeVerifier(state); ok {
		var err error
		sess, err = g.identity.ExchangeCode(ctx, code, verifier)
		if err != nil {
			return session.Session{}, fmt.Errorf("failed to exchange code: %w", err)
		}
	} else {
		pair, err := g.backend.VerifyUser(ctx, code)
		if err != nil {
			return session.Session{}, fmt.Errorf("failed to verify code: %w", err)
		}
		sess = session.Session{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.ExpiresAt,
			TokenType:    "bearer",
		}
	}

	if sess.User.ID == "" {
		user, err := g.identity.GetUser(ctx, sess.AccessToken)
		if err != nil {
			return session.Session{}, fmt.Errorf("failed to load user: %w", err)
		}
		sess.User = user
	}

	if err := g.establish(ctx, sess); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (g *Gateway) establish(ctx context.Context, sess session.Session) error {
	if err := g.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := g.store.SetFlag(ctx, session.FlagSignedIn); err != nil {
		return fmt.Errorf("failed to save onboarding flag: %w", err)
	}
	return nil
}

// SignOut revokes the session at the identity service and clears it
// locally. The local session is cleared even when revocation fails.
func (g *Gateway) SignOut(ctx context.Context) error {
	sess, err := g.store.Load(ctx)
	if err != nil && !errors.Is(err, session.ErrNoSession) {
		return err
	}

	action := instrumentation.NewAction(ctx, instrumentation.ActionSignOut, sess.User.ID, "session")
	if sess.AccessToken != "" {
		if err := g.identity.Logout(ctx, sess.AccessToken); err != nil {
			g.logger.Warn("identity logout failed, clearing local session anyway", logging.Err(err))
		}
	}

	err = g.store.Clear(ctx)
	g.audit.Log(action.Complete(err))
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Current returns the stored session or session.ErrNoSession.
func (g *Gateway) Current(ctx context.Context) (session.Session, error) {
	return g.store.Load(ctx)
}

// CallbackHandler serves the OAuth redirect target. On success it
// redirects to "/", otherwise it renders CallbackFailedMessage.
func (g *Gateway) CallbackHandler(c echo.Context) error {
	if _, err := g.CompleteOAuth(c.Request().Context(), c.QueryParam("code"), c.QueryParam("state")); err != nil {
		return c.HTML(http.StatusUnauthorized, "<!doctype html><p>"+CallbackFailedMessage+"</p>")
	}
	return c.Redirect(http.StatusFound, "/")
}
