// Package identity is a client for the hosted identity service (a
// GoTrue-compatible auth API).
//
// It covers the password and refresh grants, user lookup, sign-out and the
// Google authorize redirect with PKCE. Error responses are reduced to a
// single user-facing message.
package identity
