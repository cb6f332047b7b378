package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/compose"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/upload"
)

var errNoQuotation = &APIError{
	Status:  http.StatusNotFound,
	Code:    "NO_QUOTATION",
	Message: "No quotation has been generated yet",
}

type generateRequest struct {
	EmailContent string `json:"emailContent"`
	// MessageID, when set without EmailContent, uses the text of that
	// inbox message.
	MessageID string `json:"messageId"`
}

type setCellRequest struct {
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Value  string `json:"value"`
}

type fillRatesRequest struct {
	Path string `json:"path"`
}

type fillRatesResponse struct {
	Filled int              `json:"filled"`
	Table  *quotation.Table `json:"table"`
}

type sheetsRequest struct {
	SpreadsheetID string `json:"spreadsheetId"`
}

type injectRequest struct {
	MessageID string                `json:"messageId"`
	Page      *compose.PageSnapshot `json:"page"`
	Reply     string                `json:"reply"`
}

func (s *Server) handleGenerateQuotation(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	ctx := c.Request().Context()
	content := req.EmailContent
	if strings.TrimSpace(content) == "" && req.MessageID != "" {
		svc, err := s.deps.Inbox()
		if err != nil {
			return fromError("Gmail is not available", err)
		}
		msg, err := svc.Open(ctx, req.MessageID)
		if err != nil {
			return fromError("failed to open message", err)
		}
		content = msg.Text
	}
	if strings.TrimSpace(content) == "" {
		return NewValidationError("emailContent")
	}

	gen, err := s.deps.Generator.Generate(ctx, sess.AccessToken, content)
	if err != nil {
		return fromError("failed to generate quotation", err)
	}
	s.workspace.SetQuotation(gen.Table, req.MessageID)
	return c.JSON(http.StatusOK, gen)
}

func (s *Server) currentTable() (*quotation.Table, string, error) {
	t, source := s.workspace.Quotation()
	if t == nil {
		return nil, "", errNoQuotation
	}
	return t, source, nil
}

func (s *Server) handleCurrentQuotation(c echo.Context) error {
	t, _, err := s.currentTable()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleReplaceQuotation(c echo.Context) error {
	var t quotation.Table
	if err := c.Bind(&t); err != nil {
		return NewBadRequestError("invalid quotation", err)
	}
	t.Renumber()
	t.Pad()
	_, source := s.workspace.Quotation()
	s.workspace.SetQuotation(&t, source)
	return c.JSON(http.StatusOK, &t)
}

func (s *Server) handleSetQuotationCell(c echo.Context) error {
	var req setCellRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	t, err := s.workspace.EditQuotation(func(t *quotation.Table) error {
		return t.SetCell(req.Row, quotation.Column(req.Column), req.Value)
	})
	if err != nil {
		return fromError("failed to edit quotation", err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleAddQuotationRow(c echo.Context) error {
	t, err := s.workspace.EditQuotation(func(t *quotation.Table) error {
		t.AddRow()
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteQuotationRow(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewBadRequestError("invalid row index", err)
	}
	t, err := s.workspace.EditQuotation(func(t *quotation.Table) error {
		return t.DeleteRow(index)
	})
	if err != nil {
		return fromError("failed to delete row", err)
	}
	return c.JSON(http.StatusOK, t)
}

// handleFillRates fills empty rates of the current quotation from one of
// the user's uploaded price lists.
func (s *Server) handleFillRates(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	var req fillRatesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Path == "" {
		return NewValidationError("path")
	}

	data, err := s.deps.Files.Open(c.Request().Context(), sess.User.ID, req.Path)
	if err != nil {
		return fromError(fmt.Sprintf("price list not found: %s", req.Path), err)
	}
	prices, err := quotation.LoadPriceList(data)
	if err != nil {
		return fromError("failed to read price list", err)
	}

	var filled int
	t, err := s.workspace.EditQuotation(func(t *quotation.Table) error {
		filled = prices.FillRates(t)
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fillRatesResponse{Filled: filled, Table: t})
}

func attachment(c echo.Context, name, contentType string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, contentType, data)
}

func exportName(t *quotation.Table, ext string) string {
	if t.QuotationNo == "" {
		return "quotation." + ext
	}
	return t.QuotationNo + "." + ext
}

func (s *Server) handleQuotationPDF(c echo.Context) error {
	t, _, err := s.currentTable()
	if err != nil {
		return err
	}
	data, err := quotation.RenderPDF(t, s.deps.PDF)
	if err != nil {
		return NewInternalError("failed to render PDF", err)
	}
	s.deps.Metrics.RecordExport(c.Request().Context(), "pdf")
	return attachment(c, exportName(t, "pdf"), upload.MimePDF, data)
}

func (s *Server) handleQuotationXLSX(c echo.Context) error {
	t, _, err := s.currentTable()
	if err != nil {
		return err
	}
	data, err := quotation.RenderXLSX(t)
	if err != nil {
		return NewInternalError("failed to render workbook", err)
	}
	s.deps.Metrics.RecordExport(c.Request().Context(), "xlsx")
	return attachment(c, exportName(t, "xlsx"), upload.MimeXLSX, data)
}

func (s *Server) handleQuotationSheets(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	t, _, err := s.currentTable()
	if err != nil {
		return err
	}
	var req sheetsRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	exporter, err := s.deps.Sheets()
	if err != nil {
		return fromError("Google Sheets is not available", err)
	}
	res, err := exporter.Export(c.Request().Context(), t, req.SpreadsheetID, sess.User.ID)
	if err != nil {
		return fromError("failed to export to Google Sheets", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleQuotationOverlay(c echo.Context) error {
	t, _, err := s.currentTable()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, compose.NewOverlayMessage(t))
}

// handleInjectQuotation always answers 200; the outcome carries the status
// text shown to the user.
func (s *Server) handleInjectQuotation(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	t, source, err := s.currentTable()
	if err != nil {
		return err
	}
	var req injectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.MessageID == "" {
		req.MessageID = source
	}

	injector, err := s.deps.Injector()
	if err != nil {
		return c.JSON(http.StatusOK, compose.Outcome{Status: fromError("Gmail is not available", err).Message})
	}
	out := injector.Inject(c.Request().Context(), compose.Request{
		UserID:    sess.User.ID,
		MessageID: req.MessageID,
		Table:     t,
		Page:      req.Page,
		Reply:     req.Reply,
	})
	return c.JSON(http.StatusOK, out)
}
