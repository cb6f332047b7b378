package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msmeflow/quoteflow/internal/session"
)

var _ session.Exchanger = (*Client)(nil)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL})
}

func TestVerifyUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/authentication/verify-user", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["code"])
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r"}`))
	})

	pair, err := c.VerifyUser(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, session.TokenPair{AccessToken: "a", RefreshToken: "r"}, pair)
}

func TestVerifyUser_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"invalid flow state"}`))
	})

	_, err := c.VerifyUser(context.Background(), "abc")
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusInternalServerError, be.StatusCode)
	assert.Equal(t, "invalid flow state", be.Detail)
}

func TestRefreshToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/authentication/refresh-token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body["refresh_token"])
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","session":{}}`))
	})

	pair, err := c.RefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", pair.AccessToken)
	assert.Equal(t, "r2", pair.RefreshToken)
}

func TestGoogleSignInURL(t *testing.T) {
	c := New(Options{BaseURL: "http://localhost:8000"})
	u, err := url.Parse(c.GoogleSignInURL())
	require.NoError(t, err)
	assert.Equal(t, "/api/authentication/google", u.Path)
	assert.Equal(t, "true", u.Query().Get("from_chrome_ext"))
}

func TestGenerateQuotation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-quotation", r.URL.Path)
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Need 10 gauges", body["email_content"])
		_, _ = w.Write([]byte(`{"quotation":"{\"companyName\":\"Acme\",\"products\":[]}"}`))
	})

	body, err := c.GenerateQuotation(context.Background(), "acc", "Need 10 gauges")
	require.NoError(t, err)
	assert.Equal(t, `{"quotation":"{\"companyName\":\"Acme\",\"products\":[]}"}`, string(body))
}

func TestGenerateQuotation_UndecodableBodyIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("upstream model timed out"))
	})

	body, err := c.GenerateQuotation(context.Background(), "acc", "Need 10 gauges")
	require.NoError(t, err)
	assert.Equal(t, "upstream model timed out", string(body))
}

func TestIngestPriceLists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rag/update-price-list-files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		files := r.MultipartForm.File[FieldPriceListFiles]
		require.Len(t, files, 2)
		assert.Equal(t, "a.xlsx", files[0].Filename)
		assert.Equal(t, "b.xlsx", files[1].Filename)

		f, err := files[1].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "second", string(data))

		_, _ = w.Write([]byte(`{"message":"Price list files uploaded successfully"}`))
	})

	err := c.IngestPriceLists(context.Background(), "acc", []File{
		{Name: "a.xlsx", Data: []byte("first")},
		{Name: "b.xlsx", Data: []byte("second")},
	})
	require.NoError(t, err)
}

func TestIngestQuotations_NoFiles(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1"})
	assert.NoError(t, c.IngestQuotations(context.Background(), "acc", nil))
}
