// Package common provides helpers shared by the MCP tool packages: the
// instrumented handler wrapper, session lookup and argument parsing.
package common
