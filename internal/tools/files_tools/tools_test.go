package files_tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msmeflow/quoteflow/internal/config"
	"github.com/msmeflow/quoteflow/internal/records"
	"github.com/msmeflow/quoteflow/internal/server"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/storage"
	"github.com/msmeflow/quoteflow/internal/upload"
)

func newServerContext(t *testing.T) *server.ServerContext {
	t.Helper()
	objects, err := storage.NewLocalStore(t.TempDir(), "http://127.0.0.1:8787/objects")
	require.NoError(t, err)
	sc, err := server.NewServerContext(context.Background(), server.Options{
		Config: config.Config{
			AppURL:          "http://127.0.0.1:8787",
			RefreshInterval: time.Hour,
			HTTPTimeout:     time.Second,
		},
		KV:      session.NewMemoryKV(),
		Objects: objects,
		Records: records.NewMemoryStore(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func signIn(t *testing.T, sc *server.ServerContext) {
	t.Helper()
	require.NoError(t, sc.Sessions().Save(context.Background(), session.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         session.User{ID: "user-1", Email: "owner@example.com"},
	}))
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	c, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return c.Text
}

func TestRegisterFilesTools(t *testing.T) {
	sc := newServerContext(t)
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))

	assert.NoError(t, RegisterFilesTools(s, sc, false))
	assert.NoError(t, RegisterFilesTools(s, sc, true))
}

func TestFilesTools_NotSignedIn(t *testing.T) {
	sc := newServerContext(t)

	res, err := handleList(context.Background(), call(nil), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestFilesTools_ListAndDelete(t *testing.T) {
	sc := newServerContext(t)
	signIn(t, sc)
	ctx := context.Background()

	up, err := sc.Files().Upload(ctx, upload.Request{
		UserID:      "user-1",
		Type:        upload.TypePDF,
		Name:        "datasheet.pdf",
		ContentType: upload.MimePDF,
		Data:        []byte("%PDF-1.4"),
	})
	require.NoError(t, err)

	res, err := handleList(ctx, call(nil), sc)
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	var files []upload.UploadedFile
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &files))
	require.Len(t, files, 1)
	assert.Equal(t, up.File.Path, files[0].Path)
	assert.Equal(t, "PDF", files[0].Type)

	res, err = handleDelete(ctx, call(map[string]any{"path": up.File.Path}), sc)
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))

	res, err = handleDelete(ctx, call(map[string]any{"path": up.File.Path}), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "File not found")

	res, err = handleDelete(ctx, call(map[string]any{"path": "user-2/1-datasheet.pdf"}), sc)
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Not your file")

	res, err = handleDelete(ctx, call(nil), sc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
