package common

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

// ToolHandler is the signature of an MCP tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Observer is implemented by *server.ServerContext.
type Observer interface {
	Metrics() *instrumentation.Metrics
	Logger() *slog.Logger
}

// InstrumentedToolHandler wraps a tool handler with a span, the tool
// invocation metric and a debug log line.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, obs Observer, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		start := time.Now()

		result, err := handler(ctx, request)
		duration := time.Since(start)
		instrumentation.EndSpan(span, err)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		obs.Metrics().RecordToolInvocation(ctx, toolName, status, duration)

		logger := logging.WithComponent(obs.Logger(), "mcp")
		logger.Debug("tool invoked",
			logging.Tool(toolName),
			logging.Status(status),
			slog.Duration("duration", duration))
		return result, err
	}
}
