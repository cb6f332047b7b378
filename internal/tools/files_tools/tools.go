package files_tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/msmeflow/quoteflow/internal/server"
	"github.com/msmeflow/quoteflow/internal/storage"
	"github.com/msmeflow/quoteflow/internal/tools/common"
	"github.com/msmeflow/quoteflow/internal/upload"
)

// RegisterFilesTools registers the file tools with the MCP server.
// files_delete is left out when readOnly.
func RegisterFilesTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listTool := mcp.NewTool("files_list",
		mcp.WithDescription("List the user's uploaded files, newest first"),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("files_list", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleList(ctx, request, sc)
	}))

	if readOnly {
		return nil
	}

	deleteTool := mcp.NewTool("files_delete",
		mcp.WithDescription("Delete one of the user's uploaded files"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Storage path of the file, as returned by files_list"),
		),
	)
	s.AddTool(deleteTool, common.InstrumentedToolHandler("files_delete", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDelete(ctx, request, sc)
	}))

	return nil
}

func handleList(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}
	files, err := sc.Files().List(ctx, sess.User.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list files: %v", err)), nil
	}
	if files == nil {
		files = []upload.UploadedFile{}
	}
	return common.JSONResult(files)
}

func handleDelete(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sess, errResult := common.RequireSession(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}
	path := common.StringArg(request.GetArguments(), "path")
	if path == "" {
		return mcp.NewToolResultError("'path' field is required"), nil
	}

	err := sc.Files().Delete(ctx, sess.User.ID, path)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("File not found: %s", path)), nil
	case errors.Is(err, upload.ErrForbidden):
		return mcp.NewToolResultError(fmt.Sprintf("Not your file: %s", path)), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %s", path)), nil
}
