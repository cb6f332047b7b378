// Package backend is a client for the quotation application backend.
//
// The backend verifies Google sign-in codes, refreshes sessions, turns an
// email body into a structured quotation and ingests uploaded documents
// into its retrieval index. Authenticated routes take the session access
// token as a bearer token.
package backend
