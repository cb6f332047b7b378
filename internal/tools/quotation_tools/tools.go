package quotation_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/msmeflow/quoteflow/internal/compose"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/server"
	"github.com/msmeflow/quoteflow/internal/tools/common"
)

const tableDescription = "Quotation table as JSON: {companyName, quotationNo, date, rows: [{srNo, description, make, code, range, rate, remark}]}"

// RegisterQuotationTools registers the quotation tools with the MCP server.
// quote_attach_reply creates a Gmail draft and is left out when readOnly.
func RegisterQuotationTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	generateTool := mcp.NewTool("quote_generate",
		mcp.WithDescription("Generate a quotation table from the text of a customer email"),
		mcp.WithString("emailContent",
			mcp.Description("Email text to quote for. Required unless messageId is set."),
		),
		mcp.WithString("messageId",
			mcp.Description("Gmail message id whose text is quoted for"),
		),
	)
	s.AddTool(generateTool, common.InstrumentedToolHandler("quote_generate", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGenerate(ctx, request, sc)
	}))

	fillTool := mcp.NewTool("quote_fill_rates",
		mcp.WithDescription("Fill empty rates of a quotation from one of the user's uploaded price lists"),
		mcp.WithString("table", mcp.Required(), mcp.Description(tableDescription)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Storage path of the price list, as returned by files_list"),
		),
	)
	s.AddTool(fillTool, common.InstrumentedToolHandler("quote_fill_rates", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleFillRates(ctx, request, sc)
	}))

	exportTool := mcp.NewTool("quote_export",
		mcp.WithDescription("Write a quotation to a local PDF or XLSX file"),
		mcp.WithString("table", mcp.Required(), mcp.Description(tableDescription)),
		mcp.WithString("format",
			mcp.Required(),
			mcp.Enum("pdf", "xlsx"),
			mcp.Description("Output format"),
		),
		mcp.WithString("output",
			mcp.Description("Output file path (default: <quotationNo>.<format> in the working directory)"),
		),
	)
	s.AddTool(exportTool, common.InstrumentedToolHandler("quote_export", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExport(ctx, request, sc)
	}))

	sheetTool := mcp.NewTool("quote_export_sheet",
		mcp.WithDescription("Write a quotation to Google Sheets, creating a spreadsheet unless one is given"),
		mcp.WithString("table", mcp.Required(), mcp.Description(tableDescription)),
		mcp.WithString("spreadsheetId",
			mcp.Description("Existing spreadsheet to overwrite"),
		),
	)
	s.AddTool(sheetTool, common.InstrumentedToolHandler("quote_export_sheet", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExportSheet(ctx, request, sc)
	}))

	if readOnly {
		return nil
	}

	attachTool := mcp.NewTool("quote_attach_reply",
		mcp.WithDescription("Create a Gmail reply draft to a message with the quotation attached as PDF"),
		mcp.WithString("table", mcp.Required(), mcp.Description(tableDescription)),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("Gmail message id to reply to"),
		),
		mcp.WithString("reply",
			mcp.Description("Reply text (default: a short cover note addressed to the company)"),
		),
	)
	s.AddTool(attachTool, common.InstrumentedToolHandler("quote_attach_reply", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAttachReply(ctx, request, sc)
	}))

	return nil
}

// parseTable decodes the table argument and normalizes its numbering.
func parseTable(args map[string]interface{}) (*quotation.Table, *mcp.CallToolResult) {
	raw := common.StringArg(args, "table")
	if raw == "" {
		return nil, mcp.NewToolResultError("'table' field is required")
	}
	var t quotation.Table
	if err := json.Unmarshal([]byte(quotation.StripFence(raw)), &t); err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Invalid table: %v", err))
	}
	t.Renumber()
	t.Pad()
	return &t, nil
}

func handleGenerate(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	content := common.StringArg(args, "emailContent")
	if messageID := common.StringArg(args, "messageId"); content == "" && messageID != "" {
		svc, err := sc.Inbox()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
		}
		msg, err := svc.Open(ctx, messageID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to open message %s: %v", messageID, err)), nil
		}
		content = msg.Text
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'emailContent' or 'messageId' is required"), nil
	}

	gen, err := sc.Generator().Generate(ctx, sess.AccessToken, content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate quotation: %v", err)), nil
	}
	return common.JSONResult(gen)
}

func handleFillRates(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}
	t, errResult := parseTable(args)
	if errResult != nil {
		return errResult, nil
	}
	path := common.StringArg(args, "path")
	if path == "" {
		return mcp.NewToolResultError("'path' field is required"), nil
	}

	data, err := sc.Files().Open(ctx, sess.User.ID, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open price list %s: %v", path, err)), nil
	}
	prices, err := quotation.LoadPriceList(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read price list: %v", err)), nil
	}
	filled := prices.FillRates(t)
	return common.JSONResult(map[string]any{"filled": filled, "table": t})
}

func handleExport(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	t, errResult := parseTable(args)
	if errResult != nil {
		return errResult, nil
	}

	format := common.StringArg(args, "format")
	var (
		data []byte
		err  error
	)
	switch format {
	case "pdf":
		data, err = quotation.RenderPDF(t, sc.PDFOptions())
	case "xlsx":
		data, err = quotation.RenderXLSX(t)
	default:
		return mcp.NewToolResultError("'format' must be pdf or xlsx"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render %s: %v", format, err)), nil
	}

	output := common.StringArg(args, "output")
	if output == "" {
		name := t.QuotationNo
		if name == "" {
			name = "quotation"
		}
		output = name + "." + format
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to write %s: %v", output, err)), nil
	}
	abs, err := filepath.Abs(output)
	if err != nil {
		abs = output
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %s (%d bytes)", abs, len(data))), nil
}

func handleExportSheet(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}
	t, errResult := parseTable(args)
	if errResult != nil {
		return errResult, nil
	}

	exporter, err := sc.Sheets()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Google Sheets is not available: %v", err)), nil
	}
	res, err := exporter.Export(ctx, t, common.StringArg(args, "spreadsheetId"), sess.User.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to export to Google Sheets: %v", err)), nil
	}
	return common.JSONResult(res)
}

func handleAttachReply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}
	t, errResult := parseTable(args)
	if errResult != nil {
		return errResult, nil
	}
	messageID := common.StringArg(args, "messageId")
	if messageID == "" {
		return mcp.NewToolResultError("'messageId' field is required"), nil
	}

	injector, err := sc.Injector()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
	}
	out := injector.Inject(ctx, compose.Request{
		UserID:    sess.User.ID,
		MessageID: messageID,
		Table:     t,
		Reply:     common.StringArg(args, "reply"),
	})
	if !out.OK && out.Status != compose.MsgStillWorking {
		return mcp.NewToolResultError(out.Status), nil
	}
	return common.JSONResult(out)
}
