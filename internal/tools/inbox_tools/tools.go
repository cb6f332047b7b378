package inbox_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/msmeflow/quoteflow/internal/inbox"
	"github.com/msmeflow/quoteflow/internal/server"
	"github.com/msmeflow/quoteflow/internal/tools/common"
)

// RegisterInboxTools registers the inbox tools with the MCP server. Sending
// tools are left out when readOnly.
func RegisterInboxTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("inbox_list",
		mcp.WithDescription("List inbox messages. The first call loads the first page; more=true appends the next page."),
		mcp.WithBoolean("more",
			mcp.Description("Load the next page instead of reloading the first (default: false)"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("inbox_list", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleList(ctx, request, sc)
	}))

	readTool := mcp.NewTool("inbox_read",
		mcp.WithDescription("Read one message: headers, plain text and attachment metadata"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("Gmail message id"),
		),
	)
	s.AddTool(readTool, common.InstrumentedToolHandler("inbox_read", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRead(ctx, request, sc)
	}))

	whatsappTool := mcp.NewTool("whatsapp_link",
		mcp.WithDescription("Build a WhatsApp Web link, optionally to a phone number with prefilled text"),
		mcp.WithString("phone", mcp.Description("Phone number in international format")),
		mcp.WithString("text", mcp.Description("Prefilled message text")),
	)
	s.AddTool(whatsappTool, common.InstrumentedToolHandler("whatsapp_link", sc, handleWhatsApp))

	if readOnly {
		return nil
	}

	sendTool := mcp.NewTool("inbox_send",
		mcp.WithDescription("Send an email through Gmail"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Email subject")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Email body content")),
		mcp.WithString("cc", mcp.Description("CC email address(es), comma-separated")),
		mcp.WithString("bcc", mcp.Description("BCC email address(es), comma-separated")),
		mcp.WithBoolean("isHTML", mcp.Description("Whether the body is HTML (default: false)")),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandler("inbox_send", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSend(ctx, request, sc)
	}))

	replyTool := mcp.NewTool("inbox_reply",
		mcp.WithDescription("Reply to a message in its thread"),
		mcp.WithString("messageId", mcp.Required(), mcp.Description("Gmail message id to reply to")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Reply body")),
		mcp.WithBoolean("isHTML", mcp.Description("Whether the body is HTML (default: false)")),
	)
	s.AddTool(replyTool, common.InstrumentedToolHandler("inbox_reply", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleReply(ctx, request, sc)
	}))

	return nil
}

func handleList(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if _, errResult := common.RequireSession(ctx, sc); errResult != nil {
		return errResult, nil
	}
	mb, err := sc.Mailbox()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
	}

	var snap inbox.Snapshot
	if common.BoolArg(request.GetArguments(), "more", false) && mb.Snapshot().Page > 0 {
		snap, err = mb.LoadMore(ctx)
	} else {
		snap, err = mb.Load(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load messages: %v", err)), nil
	}
	return common.JSONResult(snap)
}

func handleRead(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if _, errResult := common.RequireSession(ctx, sc); errResult != nil {
		return errResult, nil
	}
	id := common.StringArg(request.GetArguments(), "messageId")
	if id == "" {
		return mcp.NewToolResultError("'messageId' field is required"), nil
	}
	svc, err := sc.Inbox()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
	}
	msg, err := svc.Open(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open message %s: %v", id, err)), nil
	}
	if mb, err := sc.Mailbox(); err == nil {
		mb.MarkRead(id)
	}

	// The sanitized HTML is for rendering; the text carries the content.
	msg.HTML = ""
	return common.JSONResult(msg)
}

func handleWhatsApp(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	return mcp.NewToolResultText(inbox.WhatsAppLink(common.StringArg(args, "phone"), common.StringArg(args, "text"))), nil
}

func handleSend(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	d := inbox.Draft{
		To:      common.SplitList(common.StringArg(args, "to")),
		Cc:      common.SplitList(common.StringArg(args, "cc")),
		Bcc:     common.SplitList(common.StringArg(args, "bcc")),
		Subject: common.StringArg(args, "subject"),
		Body:    common.StringArg(args, "body"),
		IsHTML:  common.BoolArg(args, "isHTML", false),
	}
	switch {
	case len(d.To) == 0:
		return mcp.NewToolResultError("'to' field is required"), nil
	case d.Subject == "":
		return mcp.NewToolResultError("'subject' field is required"), nil
	case d.Body == "":
		return mcp.NewToolResultError("'body' field is required"), nil
	}

	svc, err := sc.Inbox()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
	}
	id, err := svc.Send(ctx, sess.User.ID, d)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Email sent successfully. Message ID: %s", id)), nil
}

func handleReply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}
	id := common.StringArg(args, "messageId")
	body := common.StringArg(args, "body")
	if id == "" {
		return mcp.NewToolResultError("'messageId' field is required"), nil
	}
	if body == "" {
		return mcp.NewToolResultError("'body' field is required"), nil
	}

	svc, err := sc.Inbox()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Gmail is not available: %v", err)), nil
	}
	sent, err := svc.Reply(ctx, sess.User.ID, id, inbox.Draft{Body: body, IsHTML: common.BoolArg(args, "isHTML", false)})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send reply: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reply sent successfully. Message ID: %s", sent)), nil
}
