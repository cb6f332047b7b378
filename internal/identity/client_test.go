package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, AnonKey: "anon-key"})
}

func TestPasswordGrant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "owner@example.com", body["email"])
		assert.Equal(t, "hunter2", body["password"])

		_, _ = w.Write([]byte(`{"access_token":"acc","refresh_token":"ref","token_type":"bearer",
			"expires_at":1700003600,"user":{"id":"u-1","email":"owner@example.com"}}`))
	})

	sess, err := c.PasswordGrant(context.Background(), "owner@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "acc", sess.AccessToken)
	assert.Equal(t, "ref", sess.RefreshToken)
	assert.Equal(t, int64(1700003600), sess.ExpiresAt)
	assert.Equal(t, "u-1", sess.User.ID)
}

func TestPasswordGrant_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "error description",
			status:  http.StatusBadRequest,
			body:    `{"error":"invalid_grant","error_description":"Invalid login credentials"}`,
			wantMsg: "Invalid login credentials",
		},
		{
			name:    "msg field",
			status:  http.StatusUnprocessableEntity,
			body:    `{"code":422,"msg":"Email not confirmed"}`,
			wantMsg: "Email not confirmed",
		},
		{
			name:    "empty body",
			status:  http.StatusInternalServerError,
			body:    ``,
			wantMsg: DefaultLoginError,
		},
		{
			name:    "not json",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantMsg: DefaultLoginError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.PasswordGrant(context.Background(), "a@b.c", "x")
			require.Error(t, err)

			var ie *Error
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.status, ie.StatusCode)
			assert.Equal(t, tt.wantMsg, ie.Message)
			assert.Equal(t, tt.wantMsg, Message(err))
		})
	}
}

func TestGetUserAndLogout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/user":
			_, _ = w.Write([]byte(`{"id":"u-1","email":"owner@example.com"}`))
		case "/auth/v1/logout":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	user, err := c.GetUser(context.Background(), "acc")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)

	require.NoError(t, c.Logout(context.Background(), "acc"))
}

func TestRefreshGrant(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2"}`))
	})

	pair, err := c.RefreshGrant(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", pair.AccessToken)
	assert.Equal(t, "r2", pair.RefreshToken)
}

func TestAuthorizeURL(t *testing.T) {
	c := New(Options{BaseURL: "https://id.example.com/", AnonKey: "k"})

	raw, verifier := c.AuthorizeURL("google", "http://127.0.0.1:8787/auth/callback", []string{"openid", "email"})
	require.NotEmpty(t, verifier)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "id.example.com", u.Host)
	assert.Equal(t, "/auth/v1/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "google", q.Get("provider"))
	assert.Equal(t, "http://127.0.0.1:8787/auth/callback", q.Get("redirect_to"))
	assert.Equal(t, "s256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEqual(t, verifier, q.Get("code_challenge"))
	assert.Equal(t, "openid email", q.Get("scopes"))
}

func TestExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the-code", body["auth_code"])
		assert.Equal(t, "the-verifier", body["code_verifier"])
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","provider_token":"ya29","user":{"id":"u"}}`))
	})

	sess, err := c.ExchangeCode(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "ya29", sess.ProviderToken)
}
