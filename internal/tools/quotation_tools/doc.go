// Package quotation_tools provides MCP tools that generate quotations from
// email text, fill their rates from an uploaded price list and hand them on
// as PDF, XLSX, Google Sheets or a Gmail reply draft.
//
// Tools pass the quotation table between calls as JSON, the same shape the
// REST API uses.
package quotation_tools
