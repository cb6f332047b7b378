package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/msmeflow/quoteflow/internal/google"
	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/upstream"
)

// DefaultLoginError is shown when the identity service gives no reason.
const DefaultLoginError = "Login failed"

// Error is a decoded identity service error.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Client talks to the identity service.
type Client struct {
	api *upstream.Client
}

// Options configures New.
type Options struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
	Metrics    *instrumentation.Metrics
}

// New creates an identity client.
func New(opts Options) *Client {
	return &Client{
		api: upstream.New(upstream.Options{
			BaseURL:    opts.BaseURL,
			Service:    instrumentation.ServiceIdentity,
			HTTPClient: opts.HTTPClient,
			Header:     http.Header{"Apikey": {opts.AnonKey}},
			Metrics:    opts.Metrics,
		}),
	}
}

type tokenResponse struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type"`
	ExpiresIn            int64  `json:"expires_in"`
	ExpiresAt            int64  `json:"expires_at"`
	RefreshToken         string `json:"refresh_token"`
	ProviderToken        string `json:"provider_token"`
	ProviderRefreshToken string `json:"provider_refresh_token"`
	User                 struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (t tokenResponse) session() session.Session {
	return session.Session{
		AccessToken:          t.AccessToken,
		RefreshToken:         t.RefreshToken,
		TokenType:            t.TokenType,
		ExpiresAt:            t.ExpiresAt,
		ProviderToken:        t.ProviderToken,
		ProviderRefreshToken: t.ProviderRefreshToken,
		User:                 session.User{ID: t.User.ID, Email: t.User.Email},
	}
}

// PasswordGrant signs in with email and password.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (session.Session, error) {
	var resp tokenResponse
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/auth/v1/token",
		Query:     url.Values{"grant_type": {"password"}},
		Operation: "password_grant",
		JSON:      map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return session.Session{}, decodeError(err)
	}
	if resp.AccessToken == "" {
		return session.Session{}, &Error{Message: DefaultLoginError}
	}
	return resp.session(), nil
}

// RefreshGrant exchanges a refresh token with the identity service.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (session.TokenPair, error) {
	var resp tokenResponse
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/auth/v1/token",
		Query:     url.Values{"grant_type": {"refresh_token"}},
		Operation: "refresh_grant",
		JSON:      map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return session.TokenPair{}, decodeError(err)
	}
	return session.TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
	}, nil
}

// ExchangeCode completes a PKCE authorization with the verifier returned by
// AuthorizeURL.
func (c *Client) ExchangeCode(ctx context.Context, authCode, verifier string) (session.Session, error) {
	var resp tokenResponse
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/auth/v1/token",
		Query:     url.Values{"grant_type": {"pkce"}},
		Operation: "pkce_grant",
		JSON:      map[string]string{"auth_code": authCode, "code_verifier": verifier},
	}, &resp)
	if err != nil {
		return session.Session{}, decodeError(err)
	}
	return resp.session(), nil
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (session.User, error) {
	var user session.User
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodGet,
		Path:      "/auth/v1/user",
		Operation: "get_user",
		Bearer:    accessToken,
	}, &user)
	if err != nil {
		return session.User{}, decodeError(err)
	}
	if user.ID == "" {
		return session.User{}, errors.New("identity service returned a user without id")
	}
	return user, nil
}

// Logout revokes the session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/auth/v1/logout",
		Operation: "logout",
		Bearer:    accessToken,
	}, nil)
	if err != nil {
		return decodeError(err)
	}
	return nil
}

// AuthorizeURL builds the provider sign-in URL. The returned verifier must be
// passed to ExchangeCode together with the code from the callback.
func (c *Client) AuthorizeURL(provider, redirectTo string, scopes []string) (authURL, verifier string) {
	verifier = oauth2.GenerateVerifier()

	// Reuse the oauth2 helper to derive the S256 challenge parameters.
	conf := &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: c.api.URL("/auth/v1/authorize", nil)}}
	challenge, _ := url.Parse(conf.AuthCodeURL("", oauth2.S256ChallengeOption(verifier)))

	q := url.Values{
		"provider":              {provider},
		"redirect_to":           {redirectTo},
		"code_challenge":        {challenge.Query().Get("code_challenge")},
		"code_challenge_method": {"s256"},
	}
	if len(scopes) > 0 {
		q.Set("scopes", google.ScopeString(scopes))
	}
	return c.api.URL("/auth/v1/authorize", q), verifier
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
}

// decodeError turns an upstream status error into *Error. Transport errors
// are returned unchanged.
func decodeError(err error) error {
	var se *upstream.StatusError
	if !errors.As(err, &se) {
		return err
	}

	out := &Error{StatusCode: se.StatusCode, Message: DefaultLoginError}
	var body errorBody
	if json.Unmarshal(se.Body, &body) != nil {
		return out
	}
	out.Code = firstNonEmpty(body.ErrorCode, body.Error)
	if msg := firstNonEmpty(body.ErrorDescription, body.Msg, body.Message, body.Error); msg != "" {
		out.Message = msg
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Message
	}
	return fmt.Sprintf("%s: %v", DefaultLoginError, err)
}
