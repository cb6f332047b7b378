package quotation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"
)

// fakeBackend answers with {"quotation": raw}, or with body when set.
type fakeBackend struct {
	raw   string
	body  string
	err   error
	calls []string
}

func (f *fakeBackend) GenerateQuotation(_ context.Context, accessToken, emailContent string) ([]byte, error) {
	f.calls = append(f.calls, accessToken+"|"+emailContent)
	if f.err != nil {
		return nil, f.err
	}
	if f.body != "" {
		return []byte(f.body), nil
	}
	return json.Marshal(map[string]string{"quotation": f.raw})
}

func newTestGenerator(b Backend) *Generator {
	g := NewGenerator(b, nil, nil)
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestGenerator_Generate(t *testing.T) {
	b := &fakeBackend{raw: "```json\n{\"products\":[],\"companyName\":\"Acme\"}\n```"}

	gen, err := newTestGenerator(b).Generate(context.Background(), "tok", "need 2 valves")

	require.NoError(t, err)
	assert.Equal(t, []string{"tok|need 2 valves"}, b.calls)
	assert.False(t, gen.Degraded)
	assert.Equal(t, "Acme", gen.Table.CompanyName)
	require.Len(t, gen.Table.Rows, MinRows)
	assert.Equal(t, Row{SrNo: 1}, gen.Table.Rows[0])
	assert.Equal(t, Row{SrNo: 3}, gen.Table.Rows[2])
	assert.Contains(t, gen.Reply, "Acme")
}

func TestGenerator_Degraded(t *testing.T) {
	gen, err := newTestGenerator(&fakeBackend{raw: "I could not find any products."}).
		Generate(context.Background(), "tok", "hello")

	require.NoError(t, err)
	assert.True(t, gen.Degraded)
	assert.Equal(t, "", gen.Table.CompanyName)
	assert.Len(t, gen.Table.Rows, MinRows)
}

func TestGenerator_MalformedEnvelope(t *testing.T) {
	for _, body := range []string{
		"<html>Bad Gateway</html>",
		`{"quotation": 5}`,
		`{"detail": "ok"}`,
		`{"quotation": null}`,
	} {
		gen, err := newTestGenerator(&fakeBackend{body: body}).
			Generate(context.Background(), "tok", "hello")

		require.NoError(t, err, "body %q", body)
		assert.True(t, gen.Degraded, "body %q", body)
		assert.Equal(t, PlaceholderRow(), gen.Table.Rows[0])
		assert.Equal(t, body, gen.Raw)
	}
}

func TestGenerator_InlineQuotationObject(t *testing.T) {
	b := &fakeBackend{body: `{"quotation": {"companyName": "Acme", "products": [{"description": "Gate valve", "rate": "450"}]}}`}

	gen, err := newTestGenerator(b).Generate(context.Background(), "tok", "hello")

	require.NoError(t, err)
	assert.False(t, gen.Degraded)
	assert.Equal(t, "Acme", gen.Table.CompanyName)
	assert.Equal(t, "Gate valve", gen.Table.Rows[0].Description)
}

func TestGenerator_BackendError(t *testing.T) {
	_, err := newTestGenerator(&fakeBackend{err: errors.New("502")}).
		Generate(context.Background(), "tok", "hello")

	assert.ErrorContains(t, err, "failed to generate quotation")
}

func TestSheetsExporter_CreatesSpreadsheet(t *testing.T) {
	var written sheets.ValueRange
	var writtenRange, inputOption string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets":
			var req sheets.Spreadsheet
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"spreadsheetId":  "sheet-1",
				"spreadsheetUrl": "https://docs.google.com/spreadsheets/d/sheet-1",
				"properties":     req.Properties,
			})
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"):
			writtenRange = strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/")
			inputOption = r.URL.Query().Get("valueInputOption")
			_ = json.NewDecoder(r.Body).Decode(&written)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"spreadsheetId": "sheet-1",
				"updatedRange":  "Quotation!A1:G8",
				"updatedCells":  30,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	exp, err := NewSheetsExporter(context.Background(), SheetsOptions{
		HTTPClient: srv.Client(),
		Endpoint:   srv.URL + "/",
	})
	require.NoError(t, err)

	out, err := exp.Export(context.Background(), sampleTable(), "", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "sheet-1", out.SpreadsheetID)
	assert.Equal(t, "Quotation!A1:G8", out.UpdatedRange)
	assert.Equal(t, int64(30), out.UpdatedCells)
	assert.Equal(t, SheetName+"!A1", writtenRange)
	assert.Equal(t, "RAW", inputOption)
	require.Len(t, written.Values, headerRow+3)
	assert.Equal(t, "Acme Pvt Ltd", written.Values[0][1])
	assert.Equal(t, "Sr. No.", written.Values[headerRow-1][0])
}

func TestSheetsExporter_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	exp, err := NewSheetsExporter(context.Background(), SheetsOptions{HTTPClient: srv.Client(), Endpoint: srv.URL + "/"})
	require.NoError(t, err)

	_, err = exp.Export(context.Background(), sampleTable(), "existing", "user-1")
	assert.ErrorContains(t, err, "failed to write quotation to spreadsheet")
}
