// Package api is the local REST surface of the quoteflow agent.
//
// The browser extension popup and content script talk to these endpoints
// instead of calling the identity service, backend, storage or Google APIs
// directly. Errors are returned as APIError JSON bodies.
package api
