// Package google provides token plumbing for the Google APIs quoteflow uses.
//
// quoteflow never talks to Google's OAuth endpoints itself. Sign-in goes
// through the identity service, which returns the Google provider token as
// part of the session. The TokenProvider interface hands that token to the
// Gmail and Sheets clients.
package google
