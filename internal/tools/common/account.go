package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/msmeflow/quoteflow/internal/session"
)

// MsgNotSignedIn is returned by every tool that needs a session.
const MsgNotSignedIn = "Not signed in. Run 'quoteflow login' or sign in through the extension first."

// SessionSource is implemented by *server.ServerContext.
type SessionSource interface {
	CurrentUser(ctx context.Context) (session.Session, error)
}

// RequireSession returns the signed-in session. When there is none the
// second return value is the error result to hand back to the client.
func RequireSession(ctx context.Context, src SessionSource) (session.Session, *mcp.CallToolResult) {
	sess, err := src.CurrentUser(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return session.Session{}, mcp.NewToolResultError(MsgNotSignedIn)
	}
	if err != nil {
		return session.Session{}, mcp.NewToolResultError(fmt.Sprintf("Failed to read session: %v", err))
	}
	return sess, nil
}

// StringArg returns a trimmed string argument, or "" when it is missing or
// not a string.
func StringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// BoolArg returns a boolean argument, or def when it is missing.
func BoolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// SplitList splits a comma-separated argument into trimmed, non-empty parts.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
