// Package inbox provides the unified inbox: a paginated Gmail mailbox loaded
// with an all-complete parallel detail fetch, lazy message opening with a
// recursive MIME walk, and compose, reply and draft helpers.
//
// Gmail calls are authorized with the OAuth provider token stored in the
// session; see google.NewHTTPClient.
//
// # Failure Policy
//
// A failed page load is logged and leaves the mailbox in its last good
// state. Nothing is retried.
package inbox
