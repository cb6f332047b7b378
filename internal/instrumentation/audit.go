package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/msmeflow/quoteflow/internal/logging"
)

// Audited action kinds. Only actions with an effect outside the agent are
// audited.
const (
	ActionSendMail    = "mail.send"
	ActionReplyDraft  = "mail.reply_draft"
	ActionUpload      = "file.upload"
	ActionOverwrite   = "file.overwrite"
	ActionDelete      = "file.delete"
	ActionSheetExport = "sheet.export"
	ActionSignOut     = "session.sign_out"
)

// Action captures one outward action for the audit log.
type Action struct {
	Kind   string
	UserID string
	// Target is the object key, message id or spreadsheet id acted upon.
	Target string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string
	TraceID   string
}

// NewAction starts timing an action.
func NewAction(ctx context.Context, kind, userID, target string) *Action {
	return &Action{
		Kind:      kind,
		UserID:    userID,
		Target:    target,
		StartTime: time.Now(),
		TraceID:   GetTraceID(ctx),
	}
}

// Complete marks the action as finished.
func (a *Action) Complete(err error) *Action {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

func (a *Action) attrs(includePII bool) []any {
	user := logging.AnonymizeUser(a.UserID)
	if includePII {
		user = a.UserID
	}
	args := []any{
		slog.String("action", a.Kind),
		slog.String("user", user),
		slog.String("target", a.Target),
		slog.Duration(logging.KeyDuration, a.Duration),
		slog.Bool("success", a.Success),
	}
	if a.TraceID != "" {
		args = append(args, slog.String("trace_id", a.TraceID))
	}
	if a.Error != "" {
		args = append(args, slog.String(logging.KeyError, a.Error))
	}
	return args
}

// AuditLogger writes outward actions to a dedicated slog logger.
// A nil *AuditLogger discards everything.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("log_type", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log records a completed action.
func (al *AuditLogger) Log(a *Action) {
	if al == nil || !al.enabled || a == nil {
		return
	}
	if a.Success {
		al.logger.Info("action_completed", a.attrs(al.includePII)...)
	} else {
		al.logger.Warn("action_failed", a.attrs(al.includePII)...)
	}
}
