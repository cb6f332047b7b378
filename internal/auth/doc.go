// Package auth establishes and destroys the local session.
//
// Gateway runs the password login, the Google sign-in callback and sign-out
// against the identity service and the backend, and persists the result in
// the session store.
package auth
