package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/upstream"
)

const maxGenerateBody = 4 << 20

// Multipart field names expected by the ingestion routes.
const (
	FieldQuotations     = "quotations"
	FieldPriceListFiles = "price_list_files"
)

// Error is a decoded backend error ({"detail": "..."}).
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Detail)
}

// Client talks to the backend.
type Client struct {
	api *upstream.Client
}

// Options configures New.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Metrics    *instrumentation.Metrics
}

// New creates a backend client.
func New(opts Options) *Client {
	return &Client{
		api: upstream.New(upstream.Options{
			BaseURL:    opts.BaseURL,
			Service:    instrumentation.ServiceBackend,
			HTTPClient: opts.HTTPClient,
			Metrics:    opts.Metrics,
		}),
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// VerifyUser exchanges the code from the Google sign-in callback for a
// token pair.
func (c *Client) VerifyUser(ctx context.Context, code string) (session.TokenPair, error) {
	var resp tokenResponse
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/api/authentication/verify-user",
		Operation: "verify_user",
		JSON:      map[string]string{"code": code},
	}, &resp)
	if err != nil {
		return session.TokenPair{}, decodeError(err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return session.TokenPair{}, errors.New("verify-user response is missing tokens")
	}
	return session.TokenPair(resp), nil
}

// RefreshToken exchanges a refresh token for a new pair. It satisfies
// session.Exchanger.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (session.TokenPair, error) {
	var resp tokenResponse
	err := c.api.DoJSON(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/api/authentication/refresh-token",
		Operation: "refresh",
		JSON:      map[string]string{"refresh_token": refreshToken},
	}, &resp)
	if err != nil {
		return session.TokenPair{}, decodeError(err)
	}
	return session.TokenPair(resp), nil
}

// GoogleSignInURL is the page that starts Google sign-in. The backend
// redirects it to the provider; the provider returns to the callback with a
// code and from_chrome_ext=True.
func (c *Client) GoogleSignInURL() string {
	return c.api.URL("/api/authentication/google", url.Values{"from_chrome_ext": {"true"}})
}

// GenerateQuotation sends an email body to the generator and returns the
// response body as is. Decoding is left to the caller so a malformed answer
// can still produce a table.
func (c *Client) GenerateQuotation(ctx context.Context, accessToken, emailContent string) ([]byte, error) {
	resp, err := c.api.Do(ctx, upstream.Request{
		Method:    http.MethodPost,
		Path:      "/generate-quotation",
		Operation: "generate",
		Bearer:    accessToken,
		JSON:      map[string]string{"email_content": emailContent},
	})
	if err != nil {
		return nil, decodeError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGenerateBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read generated quotation: %w", err)
	}
	return body, nil
}

// File is one document sent for ingestion.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// IngestQuotations posts past quotations to the retrieval index.
func (c *Client) IngestQuotations(ctx context.Context, accessToken string, files []File) error {
	return c.ingest(ctx, accessToken, "/api/rag/upload-quotation", FieldQuotations, files)
}

// IngestPriceLists posts price-list workbooks to the retrieval index.
func (c *Client) IngestPriceLists(ctx context.Context, accessToken string, files []File) error {
	return c.ingest(ctx, accessToken, "/api/rag/update-price-list-files", FieldPriceListFiles, files)
}

func (c *Client) ingest(ctx context.Context, accessToken, path, field string, files []File) error {
	if len(files) == 0 {
		return nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
		if f.ContentType != "" {
			h.Set("Content-Type", f.ContentType)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create multipart part for %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, bytes.NewReader(f.Data)); err != nil {
			return fmt.Errorf("failed to write multipart part for %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	err := c.api.DoJSON(ctx, upstream.Request{
		Method:      http.MethodPost,
		Path:        path,
		Operation:   "ingest",
		Bearer:      accessToken,
		Body:        &buf,
		ContentType: mw.FormDataContentType(),
	}, nil)
	return decodeError(err)
}

func decodeError(err error) error {
	var se *upstream.StatusError
	if !errors.As(err, &se) {
		return err
	}
	out := &Error{StatusCode: se.StatusCode, Detail: strings.TrimSpace(string(se.Body))}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(se.Body, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			out.Detail = s
		} else {
			out.Detail = string(body.Detail)
		}
	}
	if out.Detail == "" {
		out.Detail = http.StatusText(se.StatusCode)
	}
	return out
}
