package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

// Service opens, sends and drafts messages on behalf of the signed-in user.
type Service struct {
	client *Client
	logger *slog.Logger
	audit  *instrumentation.AuditLogger
	now    func() time.Time
}

func NewService(client *Client, logger *slog.Logger, audit *instrumentation.AuditLogger) *Service {
	return &Service{
		client: client,
		logger: logging.WithComponent(logger, "inbox"),
		audit:  audit,
		now:    time.Now,
	}
}

// Client returns the underlying Gmail client, which is also the mailbox
// Source.
func (s *Service) Client() *Client {
	return s.client
}

// Open fetches a full message. Inline images are resolved to data URLs
// before the HTML is sanitized, and the text body is derived from the HTML
// when the message has none.
func (s *Service) Open(ctx context.Context, id string) (*Message, error) {
	raw, err := s.client.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	msg, err := parseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}

	html, err := resolveInlineImages(ctx, msg, s.client.GetAttachment)
	if err != nil {
		// Unresolved images are left as cid: references.
		s.logger.Warn("inline image resolution failed",
			logging.MessageID(id),
			logging.Err(err))
	}
	if html != "" {
		msg.HTML = SanitizeHTML(html)
	}
	if strings.TrimSpace(msg.Text) == "" && msg.HTML != "" {
		msg.Text = htmlToText(msg.HTML)
	}
	for i := range msg.Attachments {
		msg.Attachments[i].Inline = nil
	}
	return msg, nil
}

// Attachment returns the bytes of one attachment.
func (s *Service) Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	return s.client.GetAttachment(ctx, messageID, attachmentID)
}

// Send sends a new message.
func (s *Service) Send(ctx context.Context, userID string, d Draft) (string, error) {
	if d.Subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if d.Body == "" {
		return "", fmt.Errorf("body is required")
	}
	action := instrumentation.NewAction(ctx, instrumentation.ActionSendMail, userID, strings.Join(d.To, ","))

	raw, err := BuildMIME(d, s.now())
	var id string
	if err == nil {
		id, err = s.client.SendRaw(ctx, raw, d.ThreadID)
	}
	s.audit.Log(action.Complete(err))
	return id, err
}

// Reply sends a reply to the sender of messageID on its thread.
func (s *Service) Reply(ctx context.Context, userID, messageID string, d Draft) (string, error) {
	if d.Body == "" {
		return "", fmt.Errorf("body is required")
	}
	d, err := s.replyDraft(ctx, messageID, d)
	if err != nil {
		return "", err
	}
	action := instrumentation.NewAction(ctx, instrumentation.ActionSendMail, userID, messageID)
	raw, err := BuildMIME(d, s.now())
	var id string
	if err == nil {
		id, err = s.client.SendRaw(ctx, raw, d.ThreadID)
	}
	s.audit.Log(action.Complete(err))
	if err != nil {
		return "", fmt.Errorf("failed to send reply: %w", err)
	}
	return id, nil
}

// CreateReplyDraft stores a reply to messageID as a draft, leaving it for
// the user to review and send.
func (s *Service) CreateReplyDraft(ctx context.Context, userID, messageID string, d Draft) (string, error) {
	d, err := s.replyDraft(ctx, messageID, d)
	if err != nil {
		return "", err
	}
	action := instrumentation.NewAction(ctx, instrumentation.ActionReplyDraft, userID, messageID)
	raw, err := BuildMIME(d, s.now())
	var id string
	if err == nil {
		id, err = s.client.CreateDraft(ctx, raw, d.ThreadID)
	}
	s.audit.Log(action.Complete(err))
	return id, err
}

// replyDraft addresses d as a reply to messageID.
func (s *Service) replyDraft(ctx context.Context, messageID string, d Draft) (Draft, error) {
	if messageID == "" {
		return d, fmt.Errorf("messageID is required")
	}
	raw, err := s.client.GetMessage(ctx, messageID)
	if err != nil {
		return d, fmt.Errorf("failed to get original message: %w", err)
	}
	original, err := parseMessage(raw)
	if err != nil {
		return d, err
	}
	if original.From == "" {
		return d, fmt.Errorf("original message has no From header")
	}

	d.To = []string{original.From}
	d.Subject = replySubject(original.Subject)
	d.InReplyTo = original.MessageID
	d.References = references(original)
	d.ThreadID = original.ThreadID
	return d, nil
}
