// Package inbox_tools provides MCP tools over the signed-in user's Gmail
// inbox: listing, reading, sending and replying, plus the WhatsApp link.
package inbox_tools
