// Package logging provides structured logging utilities for quoteflow.
//
// All components log through log/slog. This package centralizes attribute
// names so log lines from the refresher, the inbox loop and the REST API can
// be filtered the same way.
//
// # Usage Patterns
//
//	logger := logging.WithComponent(slog.Default(), "refresher")
//	logger.Warn("token refresh failed",
//	    logging.Status(logging.StatusError),
//	    logging.Err(err))
//
// # Security Considerations
//
//   - User ids and emails are hashed with UserHash
//   - Tokens are logged only through SanitizeToken
package logging
