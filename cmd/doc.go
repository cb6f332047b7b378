// Package cmd implements the command-line interface for quoteflow.
//
// This package provides the following commands:
//   - serve: Run the REST API, health endpoints and session refresher
//   - mcp: Serve quotation, inbox and file tools over MCP stdio
//   - login, logout: Manage the stored session
//   - quote: Generate a quotation from email text and export it
//   - inbox: List inbox messages
//   - files: List, upload and delete stored files
//   - version: Display version information
package cmd
