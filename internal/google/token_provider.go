package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/msmeflow/quoteflow/internal/session"
)

// ErrNoProviderToken is returned when the session carries no Google token,
// for example after a password login.
var ErrNoProviderToken = errors.New("no Google provider token in session, sign in with Google")

// TokenProvider is an interface for providing OAuth tokens for Google APIs.
type TokenProvider interface {
	// ProviderToken returns the Google access token of the current session.
	ProviderToken(ctx context.Context) (*oauth2.Token, error)
}

// SessionTokenProvider reads the provider token from the session store.
// The token is issued by the identity service during Google sign-in and is
// never refreshed locally.
type SessionTokenProvider struct {
	store *session.Store
}

// NewSessionTokenProvider creates a provider backed by store.
func NewSessionTokenProvider(store *session.Store) *SessionTokenProvider {
	return &SessionTokenProvider{store: store}
}

// ProviderToken returns the stored provider token.
func (p *SessionTokenProvider) ProviderToken(ctx context.Context) (*oauth2.Token, error) {
	sess, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess.ProviderToken == "" {
		return nil, ErrNoProviderToken
	}
	return &oauth2.Token{
		AccessToken:  sess.ProviderToken,
		RefreshToken: sess.ProviderRefreshToken,
		TokenType:    "Bearer",
	}, nil
}

// TokenSource adapts a TokenProvider to oauth2.TokenSource. Every call reads
// the store again so a re-login is picked up without rebuilding clients.
func TokenSource(ctx context.Context, p TokenProvider) oauth2.TokenSource {
	return tokenSourceFunc(func() (*oauth2.Token, error) {
		return p.ProviderToken(ctx)
	})
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// NewHTTPClient returns an HTTP client that authorizes requests with the
// session's provider token. The client is configured to use HTTP/1.1 to
// avoid HTTP/2 protocol errors.
func NewHTTPClient(ctx context.Context, p TokenProvider) *http.Client {
	client := oauth2.NewClient(ctx, TokenSource(ctx, p))

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}
