// Package session persists the signed-in session and keeps its tokens fresh.
//
// The session lives in a KV under four keys: the JSON session blob, the
// access and refresh tokens, and a numeric onboarding flag. FileKV is the
// default backend, ValkeyKV is used when a Valkey address is configured.
package session
