package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msmeflow/quoteflow/internal/compose"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/upload"
)

func generate(t *testing.T, env *testEnv) *quotation.Table {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/quotations", generateRequest{EmailContent: "Please quote 10 brass ball valves"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	gen := decode[quotation.Generation](t, rec)
	require.NotNil(t, gen.Table)
	return gen.Table
}

func TestQuotation_NoneBeforeGenerate(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/quotations/current", "/api/quotations/current/pdf", "/api/quotations/current/overlay"} {
		rec := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "NO_QUOTATION", decode[APIError](t, rec).Code, path)
	}
}

func TestQuotation_GenerateRequiresContent(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()

	rec := env.do(t, http.MethodPost, "/api/quotations", generateRequest{EmailContent: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotation_GenerateAndEdit(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()

	table := generate(t, env)
	assert.Equal(t, "Acme Traders", table.CompanyName)
	require.Len(t, table.Rows, quotation.MinRows)
	assert.Equal(t, "Brass Ball Valve", table.Rows[0].Description)

	rec := env.do(t, http.MethodPut, "/api/quotations/current/cells", setCellRequest{Row: 0, Column: int(quotation.ColRate), Value: "500"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "500", decode[quotation.Table](t, rec).Rows[0].Rate)

	rec = env.do(t, http.MethodPut, "/api/quotations/current/cells", setCellRequest{Row: 99, Column: 1, Value: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/quotations/current/rows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[quotation.Table](t, rec).Rows, quotation.MinRows+1)

	rec = env.do(t, http.MethodDelete, "/api/quotations/current/rows/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[quotation.Table](t, rec).Rows
	assert.Len(t, rows, quotation.MinRows)
	assert.Equal(t, 1, rows[0].SrNo)

	rec = env.do(t, http.MethodDelete, "/api/quotations/current/rows/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	current := decode[quotation.Table](t, env.do(t, http.MethodGet, "/api/quotations/current", nil))
	assert.Equal(t, table.QuotationNo, current.QuotationNo)
}

func TestQuotation_Replace(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/quotations/current", quotation.Table{
		CompanyName: "Beta",
		Rows:        []quotation.Row{{SrNo: 7, Description: "Gate Valve"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[quotation.Table](t, rec)
	require.Len(t, got.Rows, quotation.MinRows)
	assert.Equal(t, 1, got.Rows[0].SrNo)
	assert.Equal(t, 3, got.Rows[2].SrNo)
}

func TestQuotation_FillRates(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()
	generate(t, env)

	rec := env.upload(t, "price-list", "prices.xlsx", upload.MimeXLSX, workbook(t, priceRows))
	require.Equal(t, http.StatusCreated, rec.Code)
	path := decode[upload.Result](t, rec).File.Path

	rec = env.do(t, http.MethodPost, "/api/quotations/current/fill-rates", fillRatesRequest{Path: path})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[fillRatesResponse](t, rec)
	assert.Equal(t, 1, got.Filled)
	assert.Equal(t, "450", got.Table.Rows[0].Rate)
	assert.Equal(t, "Zoloto", got.Table.Rows[0].Make)

	rec = env.do(t, http.MethodPost, "/api/quotations/current/fill-rates", fillRatesRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuotation_Exports(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()
	table := generate(t, env)

	rec := env.do(t, http.MethodGet, "/api/quotations/current/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), table.QuotationNo+".pdf")

	rec = env.do(t, http.MethodGet, "/api/quotations/current/xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, upload.MimeXLSX, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(t, http.MethodPost, "/api/quotations/current/sheets", sheetsRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-sheet", decode[quotation.SheetExport](t, rec).SpreadsheetID)

	rec = env.do(t, http.MethodGet, "/api/quotations/current/overlay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode[compose.OverlayMessage](t, rec)
	assert.Equal(t, compose.MessageShowEditor, msg.Type)
	require.Len(t, msg.Data, 1+quotation.MinRows)
	assert.Equal(t, "Brass Ball Valve", msg.Data[1][1].Value)
}

func TestQuotation_Inject(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()

	rec := env.do(t, http.MethodPost, "/api/quotations", generateRequest{EmailContent: "need valves"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/quotations/current/inject", injectRequest{MessageID: "msg-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[compose.Outcome](t, rec)
	assert.True(t, out.OK)
	assert.Equal(t, compose.MsgInjected, out.Status)
	assert.Equal(t, "msg-1", env.injector.got.MessageID)
	assert.Equal(t, testUser, env.injector.got.UserID)
	assert.Equal(t, "Acme Traders", env.injector.got.Table.CompanyName)
}
