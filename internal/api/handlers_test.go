package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/msmeflow/quoteflow/internal/compose"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/records"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/storage"
	"github.com/msmeflow/quoteflow/internal/upload"
)

const testUser = "user-1"

type fakeAuth struct {
	sess     session.Session
	loginErr error
}

func (f *fakeAuth) Login(_ context.Context, email, _ string) (session.Session, error) {
	if f.loginErr != nil {
		return session.Session{}, f.loginErr
	}
	f.sess = session.Session{AccessToken: "access", RefreshToken: "refresh", User: session.User{ID: testUser, Email: email}}
	return f.sess, nil
}

func (f *fakeAuth) GoogleSignInURL() string       { return "https://backend.example/google" }
func (f *fakeAuth) DirectGoogleSignInURL() string { return "https://identity.example/authorize" }

func (f *fakeAuth) SignOut(context.Context) error {
	f.sess = session.Session{}
	return nil
}

func (f *fakeAuth) Current(context.Context) (session.Session, error) {
	if f.sess.AccessToken == "" {
		return session.Session{}, session.ErrNoSession
	}
	return f.sess, nil
}

func (f *fakeAuth) CallbackHandler(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/")
}

type fakeGenBackend struct{ raw string }

func (f *fakeGenBackend) GenerateQuotation(context.Context, string, string) ([]byte, error) {
	return json.Marshal(map[string]string{"quotation": f.raw})
}

type fakeInjector struct{ got compose.Request }

func (f *fakeInjector) Inject(_ context.Context, req compose.Request) compose.Outcome {
	f.got = req
	return compose.Outcome{OK: true, Status: compose.MsgInjected, DraftID: "draft-1"}
}

type fakeSheets struct{}

func (fakeSheets) Export(_ context.Context, t *quotation.Table, id, _ string) (quotation.SheetExport, error) {
	if id == "" {
		id = "new-sheet"
	}
	return quotation.SheetExport{SpreadsheetID: id, UpdatedCells: int64(len(t.Matrix()) * 7)}, nil
}

type testEnv struct {
	srv      *Server
	auth     *fakeAuth
	mailbox  *fakeMailbox
	inbox    *fakeInbox
	injector *fakeInjector
}

const generated = "```json\n" + `{"companyName":"Acme Traders","products":[{"srNo":1,"description":"Brass Ball Valve"}]}` + "\n```"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	objects, err := storage.NewLocalStore(t.TempDir(), "http://127.0.0.1:8787/objects")
	require.NoError(t, err)

	env := &testEnv{
		auth:     &fakeAuth{},
		mailbox:  newFakeMailbox(),
		inbox:    &fakeInbox{},
		injector: &fakeInjector{},
	}
	env.srv = NewServer(Dependencies{
		Auth:      env.auth,
		Files:     upload.NewService(upload.Options{Store: objects, Records: records.NewMemoryStore()}),
		Generator: quotation.NewGenerator(&fakeGenBackend{raw: generated}, nil, nil),
		Sheets:    func() (SheetExporter, error) { return fakeSheets{}, nil },
		Inbox:     func() (Inbox, error) { return env.inbox, nil },
		Mailbox:   func() (Mailbox, error) { return env.mailbox, nil },
		Injector:  func() (Injector, error) { return env.injector, nil },
	})
	return env
}

func (e *testEnv) signIn() {
	e.auth.sess = session.Session{AccessToken: "access", RefreshToken: "refresh", User: session.User{ID: testUser}}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) upload(t *testing.T, typ, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("type", typ))
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + name + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	r.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestAuth_LoginAndStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[authStatusResponse](t, rec).SignedIn)

	rec = env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[APIError](t, rec).Code)

	env.auth.loginErr = errors.New("invalid credentials")
	rec = env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "a@example.com", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[APIError](t, rec).Code)

	env.auth.loginErr = nil
	rec = env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "a@example.com", Password: "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[authStatusResponse](t, env.do(t, http.MethodGet, "/api/auth/status", nil))
	assert.True(t, status.SignedIn)
	assert.Equal(t, "a@example.com", status.User.Email)
	assert.False(t, status.Google)

	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, decode[authStatusResponse](t, env.do(t, http.MethodGet, "/api/auth/status", nil)).SignedIn)
}

func TestAuth_GoogleSignIn(t *testing.T) {
	env := newTestEnv(t)

	body := decode[map[string]string](t, env.do(t, http.MethodGet, "/api/auth/google", nil))
	assert.Equal(t, "https://backend.example/google", body["url"])

	body = decode[map[string]string](t, env.do(t, http.MethodGet, "/api/auth/google?direct=true", nil))
	assert.Equal(t, "https://identity.example/authorize", body["url"])

	rec := env.do(t, http.MethodGet, "/auth/callback?code=abc", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestErrorHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "HTTP_ERROR", decode[APIError](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{session.ErrNoSession, http.StatusUnauthorized},
		{&upload.ValidationError{Field: "file", Message: upload.MsgTooLarge}, http.StatusBadRequest},
		{upload.ErrForbidden, http.StatusForbidden},
		{storage.ErrNotFound, http.StatusNotFound},
		{quotation.ErrRowOutOfRange, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, fromError("x", tt.err).Status, tt.err.Error())
	}
	assert.Equal(t, upload.MsgTooLarge, fromError("x", &upload.ValidationError{Message: upload.MsgTooLarge}).Message)
}
