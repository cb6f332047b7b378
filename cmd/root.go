package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the quoteflow application
var rootCmd = &cobra.Command{
	Use:   "quoteflow",
	Short: "Turns customer emails into quotations",
	Long: `quoteflow is the local agent behind the quotation browser extension.
It signs in against the identity service, keeps the session fresh, stores
price lists and quotations, generates quotation tables from email text and
hands them on as PDF, XLSX, Google Sheets or a Gmail reply draft.

It can run as:
  - The REST API used by the extension (serve)
  - An MCP (Model Context Protocol) server for AI assistants (mcp)
  - A command-line tool (login, quote, inbox, files)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "quoteflow version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newQuoteCmd())
	rootCmd.AddCommand(newInboxCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newVersionCmd())
}
