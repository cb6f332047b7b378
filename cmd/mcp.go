package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/msmeflow/quoteflow/internal/server"
	"github.com/msmeflow/quoteflow/internal/tools/files_tools"
	"github.com/msmeflow/quoteflow/internal/tools/inbox_tools"
	"github.com/msmeflow/quoteflow/internal/tools/quotation_tools"
)

func newMCPCmd() *cobra.Command {
	var (
		debugMode bool
		yolo      bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve quotation, inbox and file tools over MCP stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout. The tools act
as the user signed in with 'quoteflow login' or through the extension.

Tools that send mail, create drafts or delete files are only registered
with --yolo.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(debugMode, yolo)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging (written to stderr)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (sending email, reply drafts, file deletion). Default is read-only mode.")

	return cmd
}

func runMCP(debugMode, yolo bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := bootstrap(shutdownCtx, appOptions{debug: debugMode, instrument: true})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	go a.sc.Refresher().Run(shutdownCtx)

	mcpSrv := mcpserver.NewMCPServer("quoteflow", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := registerAllTools(mcpSrv, a.sc, !yolo); err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-shutdownCtx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

// registerAllTools registers every MCP tool package.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	registrations := []struct {
		name     string
		register func() error
	}{
		{"Quotation", func() error { return quotation_tools.RegisterQuotationTools(mcpSrv, sc, readOnly) }},
		{"Inbox", func() error { return inbox_tools.RegisterInboxTools(mcpSrv, sc, readOnly) }},
		{"Files", func() error { return files_tools.RegisterFilesTools(mcpSrv, sc, readOnly) }},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}
	return nil
}
