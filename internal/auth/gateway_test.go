package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msmeflow/quoteflow/internal/session"
)

type fakeIdentity struct {
	passwordSess session.Session
	passwordErr  error
	exchangeSess session.Session
	user         session.User
	userErr      error
	logoutErr    error

	loggedOut     []string
	exchangedWith string
	redirectTo    string
}

func (f *fakeIdentity) PasswordGrant(_ context.Context, _, _ string) (session.Session, error) {
	return f.passwordSess, f.passwordErr
}

func (f *fakeIdentity) ExchangeCode(_ context.Context, _, verifier string) (session.Session, error) {
	f.exchangedWith = verifier
	return f.exchangeSess, nil
}

func (f *fakeIdentity) GetUser(_ context.Context, _ string) (session.User, error) {
	return f.user, f.userErr
}

func (f *fakeIdentity) Logout(_ context.Context, accessToken string) error {
	f.loggedOut = append(f.loggedOut, accessToken)
	return f.logoutErr
}

func (f *fakeIdentity) AuthorizeURL(provider, redirectTo string, _ []string) (string, string) {
	f.redirectTo = redirectTo
	q := url.Values{"provider": {provider}, "redirect_to": {redirectTo}}
	return "https://id.example.com/authorize?" + q.Encode(), "verifier-1"
}

// state returns the state carried by the last redirect URL.
func (f *fakeIdentity) state(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(f.redirectTo)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

type fakeBackend struct {
	pair session.TokenPair
	err  error

	verified []string
}

func (f *fakeBackend) VerifyUser(_ context.Context, code string) (session.TokenPair, error) {
	f.verified = append(f.verified, code)
	return f.pair, f.err
}

func (f *fakeBackend) GoogleSignInURL() string {
	return "http://backend/api/authentication/google?from_chrome_ext=true"
}

func newGateway(id *fakeIdentity, be *fakeBackend) (*Gateway, *session.Store) {
	store := session.NewStore(session.NewMemoryKV())
	return NewGateway(Config{
		Identity:    id,
		Backend:     be,
		Store:       store,
		CallbackURL: "http://127.0.0.1:8787/auth/callback",
	}), store
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{passwordSess: session.Session{AccessToken: "a", RefreshToken: "r", User: session.User{ID: "u1"}}}
	g, store := newGateway(id, &fakeBackend{})

	sess, err := g.Login(ctx, " owner@example.com ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", stored.AccessToken)

	flag, err := store.Flag(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.FlagSignedIn, flag)
}

func TestLogin_FailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	g, store := newGateway(&fakeIdentity{passwordErr: errors.New("Invalid login credentials")}, &fakeBackend{})

	_, err := g.Login(ctx, "owner@example.com", "bad")
	require.EqualError(t, err, "Invalid login credentials")

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
	flag, _ := store.Flag(ctx)
	assert.Equal(t, session.FlagNew, flag)
}

func TestCompleteOAuth_ViaBackend(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{user: session.User{ID: "u1", Email: "owner@example.com"}}
	g, store := newGateway(id, &fakeBackend{pair: session.TokenPair{AccessToken: "a", RefreshToken: "r"}})

	sess, err := g.CompleteOAuth(ctx, "code-1", "")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", sess.User.Email)
	assert.Empty(t, id.exchangedWith)

	access, refresh, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", access)
	assert.Equal(t, "r", refresh)
}

func TestCompleteOAuth_DirectPKCE(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{exchangeSess: session.Session{AccessToken: "a", RefreshToken: "r", ProviderToken: "ya29", User: session.User{ID: "u1"}}}
	be := &fakeBackend{err: errors.New("invalid flow state")}
	g, store := newGateway(id, be)

	authURL := g.DirectGoogleSignInURL()
	assert.Contains(t, authURL, url.QueryEscape("http://127.0.0.1:8787/auth/callback?state="))
	state := id.state(t)

	_, err := g.CompleteOAuth(ctx, "code-1", state)
	require.NoError(t, err)
	assert.Equal(t, "verifier-1", id.exchangedWith)
	assert.Empty(t, be.verified)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ya29", stored.ProviderToken)

	// The state is single use; replaying it goes through the backend.
	_, err = g.CompleteOAuth(ctx, "code-2", state)
	assert.Error(t, err)
	assert.Equal(t, []string{"code-2"}, be.verified)
}

func TestCompleteOAuth_AbandonedDirectSignIn(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{user: session.User{ID: "u1"}}
	be := &fakeBackend{pair: session.TokenPair{AccessToken: "backend-a", RefreshToken: "backend-r"}}
	g, store := newGateway(id, be)

	_ = g.DirectGoogleSignInURL()
	_ = g.GoogleSignInURL()

	_, err := g.CompleteOAuth(ctx, "backend-code", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"backend-code"}, be.verified)
	assert.Empty(t, id.exchangedWith)

	access, _, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "backend-a", access)
}

func TestCompleteOAuth_UnknownStateUsesBackend(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{user: session.User{ID: "u1"}}
	be := &fakeBackend{pair: session.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	g, _ := newGateway(id, be)
	_ = g.DirectGoogleSignInURL()

	_, err := g.CompleteOAuth(ctx, "code", "not-a-pending-state")
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, be.verified)
	assert.Empty(t, id.exchangedWith)
}

func TestCompleteOAuth_ExpiredDirectSignIn(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{user: session.User{ID: "u1"}}
	be := &fakeBackend{pair: session.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	g, _ := newGateway(id, be)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	_ = g.DirectGoogleSignInURL()
	state := id.state(t)

	now = now.Add(PendingSignInTTL + time.Second)
	_, err := g.CompleteOAuth(ctx, "code", state)
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, be.verified)
	assert.Empty(t, id.exchangedWith)
	assert.Empty(t, g.pending)
}

func TestCompleteOAuth_Errors(t *testing.T) {
	ctx := context.Background()

	g, _ := newGateway(&fakeIdentity{}, &fakeBackend{})
	_, err := g.CompleteOAuth(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingCode)

	g, store := newGateway(&fakeIdentity{userErr: errors.New("jwt expired")},
		&fakeBackend{pair: session.TokenPair{AccessToken: "a", RefreshToken: "r"}})
	_, err = g.CompleteOAuth(ctx, "code", "")
	require.Error(t, err)
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestSignOut(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{logoutErr: errors.New("network down")}
	g, store := newGateway(id, &fakeBackend{})
	require.NoError(t, store.Save(ctx, session.Session{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.SetFlag(ctx, session.FlagSignedIn))

	require.NoError(t, g.SignOut(ctx))
	assert.Equal(t, []string{"a"}, id.loggedOut)

	_, err := g.Current(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
	flag, _ := store.Flag(ctx)
	assert.Equal(t, session.FlagSignedIn, flag)

	// Signing out twice is harmless.
	require.NoError(t, g.SignOut(ctx))
	assert.Len(t, id.loggedOut, 1)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		backend      *fakeBackend
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:         "success redirects home",
			query:        "?code=abc&from_chrome_ext=True",
			backend:      &fakeBackend{pair: session.TokenPair{AccessToken: "a", RefreshToken: "r"}},
			wantStatus:   http.StatusFound,
			wantLocation: "/",
		},
		{
			name:       "missing code",
			query:      "",
			backend:    &fakeBackend{},
			wantStatus: http.StatusUnauthorized,
			wantBody:   CallbackFailedMessage,
		},
		{
			name:       "backend rejects code",
			query:      "?code=abc",
			backend:    &fakeBackend{err: errors.New("invalid flow state")},
			wantStatus: http.StatusUnauthorized,
			wantBody:   CallbackFailedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGateway(&fakeIdentity{user: session.User{ID: "u1"}}, tt.backend)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/auth/callback"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, g.CallbackHandler(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				assert.NotContains(t, rec.Body.String(), "invalid flow state")
			}
		})
	}
}
