// Package upstream is the JSON-over-HTTP plumbing shared by the identity and
// backend clients.
//
// Every call is timed, traced and counted under the caller's service name.
// Non-2xx responses come back as *StatusError carrying the raw body so each
// client can decode its own error envelope.
package upstream
