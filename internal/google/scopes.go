package google

import (
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	sheets "google.golang.org/api/sheets/v4"
)

// DefaultOAuthScopes are the Google scopes requested through the identity
// service when the user signs in with Google.
//
// The scopes provide access to:
//   - Gmail: read, modify, send
//   - Google Sheets: read and write (quotation export)
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Gmail scopes
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
	gmail.GmailSendScope,
	gmail.GmailComposeScope,

	// Google Sheets scope
	sheets.SpreadsheetsScope,
}

// ScopeString joins scopes with spaces, the format the authorize endpoint
// expects in its scopes parameter.
func ScopeString(scopes []string) string {
	return strings.Join(scopes, " ")
}
