// Package files_tools provides MCP tools over the user's uploaded price
// lists, quotations and PDFs.
package files_tools
