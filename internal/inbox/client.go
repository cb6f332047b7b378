package inbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
)

const (
	// MaxAttachmentSize is the largest attachment fetched, 25MB.
	MaxAttachmentSize = 25 * 1024 * 1024

	labelUnread = "UNREAD"
	userMe      = "me"
)

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// ClientOptions configures NewClient. Endpoint overrides the Gmail base URL
// and is empty in production.
type ClientOptions struct {
	HTTPClient *http.Client
	Endpoint   string
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// NewClient creates a Gmail client from an authorized HTTP client.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(opts.HTTPClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &Client{
		svc:     svc.Users,
		logger:  logging.WithComponent(opts.Logger, "gmail"),
		metrics: opts.Metrics,
	}, nil
}

func (c *Client) record(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordUpstreamCall(ctx, instrumentation.ServiceGmail, op, status, time.Since(start))
}

// ListMessageIDs lists one page of message ids matching query. The returned
// token is empty when there are no further pages.
func (c *Client) ListMessageIDs(ctx context.Context, query, pageToken string, pageSize int64) ([]string, string, error) {
	start := time.Now()
	req := c.svc.Messages.List(userMe).MaxResults(pageSize).Context(ctx)
	if query != "" {
		req = req.Q(query)
	}
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}
	res, err := req.Do()
	c.record(ctx, instrumentation.OperationList, start, err)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list messages: %w", err)
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, res.NextPageToken, nil
}

// GetSummary fetches the headers needed for the mailbox list.
func (c *Client) GetSummary(ctx context.Context, id string) (Summary, error) {
	start := time.Now()
	msg, err := c.svc.Messages.Get(userMe, id).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Date").
		Context(ctx).
		Do()
	c.record(ctx, instrumentation.OperationGet, start, err)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return summarize(msg), nil
}

// GetMessage retrieves a full Gmail message.
func (c *Client) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	start := time.Now()
	msg, err := c.svc.Messages.Get(userMe, id).Format("full").Context(ctx).Do()
	c.record(ctx, instrumentation.OperationGet, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return msg, nil
}

// GetAttachment retrieves the decoded content of an attachment.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return nil, fmt.Errorf("attachmentID is required")
	}

	start := time.Now()
	att, err := c.svc.Messages.Attachments.Get(userMe, messageID, attachmentID).Context(ctx).Do()
	c.record(ctx, instrumentation.OperationGet, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}
	if att.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", att.Size, MaxAttachmentSize)
	}
	return decodeBody(att.Data)
}

// SendRaw sends an RFC 5322 message, threading it when threadID is set.
func (c *Client) SendRaw(ctx context.Context, raw []byte, threadID string) (string, error) {
	start := time.Now()
	sent, err := c.svc.Messages.Send(userMe, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: threadID,
	}).Context(ctx).Do()
	c.record(ctx, instrumentation.OperationSend, start, err)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}

// CreateDraft stores an RFC 5322 message as a draft on threadID.
func (c *Client) CreateDraft(ctx context.Context, raw []byte, threadID string) (string, error) {
	start := time.Now()
	draft, err := c.svc.Drafts.Create(userMe, &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString(raw),
			ThreadId: threadID,
		},
	}).Context(ctx).Do()
	c.record(ctx, instrumentation.OperationCreate, start, err)
	if err != nil {
		return "", fmt.Errorf("failed to create draft: %w", err)
	}
	return draft.Id, nil
}

func summarize(msg *gmail.Message) Summary {
	s := Summary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
		Subject:  HeaderValue(msg, "Subject"),
		From:     HeaderValue(msg, "From"),
		Date:     HeaderValue(msg, "Date"),
	}
	for _, l := range msg.LabelIds {
		if l == labelUnread {
			s.Unread = true
			break
		}
	}
	return s
}

// HeaderValue returns the first top-level header with the given name,
// compared case-insensitively.
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	return partHeader(msg.Payload, name)
}

func partHeader(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// decodeBody decodes Gmail body data, which is base64url but is sometimes
// returned with standard padding.
func decodeBody(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
	}
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode message body: %w", err)
		}
	}
	return decoded, nil
}
