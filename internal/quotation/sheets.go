package quotation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

// SheetExport describes a finished Google Sheets export.
type SheetExport struct {
	SpreadsheetID  string `json:"spreadsheetId"`
	SpreadsheetURL string `json:"spreadsheetUrl,omitempty"`
	UpdatedRange   string `json:"updatedRange"`
	UpdatedCells   int64  `json:"updatedCells"`
}

// SheetsExporter writes quotation tables to Google Sheets.
type SheetsExporter struct {
	service *sheets.Service
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// SheetsOptions configures NewSheetsExporter. Endpoint overrides the API
// base URL and is empty in production.
type SheetsOptions struct {
	HTTPClient *http.Client
	Endpoint   string
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	Audit      *instrumentation.AuditLogger
}

// NewSheetsExporter creates a Sheets client using an authorized HTTP client.
func NewSheetsExporter(ctx context.Context, opts SheetsOptions) (*SheetsExporter, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(opts.HTTPClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsExporter{
		service: srv,
		logger:  logging.WithComponent(opts.Logger, "sheets"),
		metrics: opts.Metrics,
		audit:   opts.Audit,
	}, nil
}

// Export writes the table starting at A1. An empty spreadsheetID creates a
// new spreadsheet titled after the quotation number.
func (e *SheetsExporter) Export(ctx context.Context, t *Table, spreadsheetID, userID string) (SheetExport, error) {
	action := instrumentation.NewAction(ctx, instrumentation.ActionSheetExport, userID, spreadsheetID)
	out, err := e.export(ctx, t, spreadsheetID)
	if out.SpreadsheetID != "" {
		action.Target = out.SpreadsheetID
	}
	e.audit.Log(action.Complete(err))
	if err != nil {
		return SheetExport{}, err
	}
	e.metrics.RecordExport(ctx, "sheets")
	return out, nil
}

func (e *SheetsExporter) export(ctx context.Context, t *Table, spreadsheetID string) (SheetExport, error) {
	var out SheetExport
	writeRange := "A1"

	if spreadsheetID == "" {
		start := time.Now()
		created, err := e.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: "Quotation " + t.QuotationNo},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: SheetName}},
			},
		}).Context(ctx).Do()
		e.metrics.RecordUpstreamCall(ctx, instrumentation.ServiceSheets, instrumentation.OperationCreate, status(err), time.Since(start))
		if err != nil {
			return out, fmt.Errorf("failed to create spreadsheet: %w", err)
		}
		spreadsheetID = created.SpreadsheetId
		out.SpreadsheetURL = created.SpreadsheetUrl
		writeRange = SheetName + "!A1"
	}
	out.SpreadsheetID = spreadsheetID

	rows := sheetRows(t)
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = append([]interface{}{}, r...)
		if len(values[i]) == 0 {
			values[i] = []interface{}{""}
		}
	}

	start := time.Now()
	resp, err := e.service.Spreadsheets.Values.Update(spreadsheetID, writeRange, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	e.metrics.RecordUpstreamCall(ctx, instrumentation.ServiceSheets, instrumentation.OperationUpdate, status(err), time.Since(start))
	if err != nil {
		return out, fmt.Errorf("failed to write quotation to spreadsheet: %w", err)
	}

	out.UpdatedRange = resp.UpdatedRange
	out.UpdatedCells = resp.UpdatedCells
	e.logger.Info("quotation exported to sheets",
		logging.Operation("sheets.export"),
		slog.String("spreadsheet_id", spreadsheetID),
		slog.String("range", out.UpdatedRange))
	return out, nil
}

func status(err error) string {
	if err != nil {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}
