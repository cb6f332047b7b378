package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msmeflow/quoteflow/internal/inbox"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/task"
)

// DefaultWaitTimeout bounds how long Inject waits for the draft.
const DefaultWaitTimeout = 30 * time.Second

// Status messages returned in an Outcome.
const (
	MsgInjected      = "Quotation attached to the reply draft"
	MsgStillWorking  = "Still attaching the quotation; check your drafts shortly"
	MsgMissingSource = "No email selected to reply to"
)

// Drafter stores a reply draft on the thread of messageID.
type Drafter interface {
	CreateReplyDraft(ctx context.Context, userID, messageID string, d inbox.Draft) (string, error)
}

// Request asks for the quotation to be attached to a reply to MessageID.
// Page is the host page snapshot; without one the host page is not
// checked.
type Request struct {
	UserID    string
	MessageID string
	Table     *quotation.Table
	Page      *PageSnapshot
	Reply     string
}

// Outcome is the plain status reported back to the popup.
type Outcome struct {
	OK      bool    `json:"ok"`
	Status  string  `json:"status"`
	DraftID string  `json:"draftId,omitempty"`
	Target  *Target `json:"target,omitempty"`
}

// Injector renders the quotation PDF and creates the reply draft.
type Injector struct {
	drafter Drafter
	pdf     quotation.PDFOptions
	timeout time.Duration
	logger  *slog.Logger
}

func NewInjector(drafter Drafter, pdf quotation.PDFOptions, timeout time.Duration, logger *slog.Logger) *Injector {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Injector{
		drafter: drafter,
		pdf:     pdf,
		timeout: timeout,
		logger:  logging.WithComponent(logger, "compose"),
	}
}

// Inject never returns an error; every failure becomes the Outcome status.
// When the draft takes longer than the timeout the watch is abandoned and
// the draft is still created in the background.
func (i *Injector) Inject(ctx context.Context, req Request) Outcome {
	var out Outcome
	if req.Page != nil {
		target, status, ok := Locate(*req.Page)
		if !ok {
			return Outcome{Status: status}
		}
		out.Target = &target
	}
	if req.MessageID == "" {
		return Outcome{Status: MsgMissingSource}
	}
	if req.Table == nil {
		return Outcome{Status: "No quotation to attach"}
	}

	pdf, err := quotation.RenderPDF(req.Table, i.pdf)
	if err != nil {
		return i.failed(req, err)
	}

	body := req.Reply
	if body == "" {
		body = quotation.ReplyText(req.Table.CompanyName)
	}
	draft := inbox.Draft{
		Body: body,
		Attachments: []inbox.OutgoingAttachment{{
			Filename:    attachmentName(req.Table),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}

	result := task.Go(ctx, func(ctx context.Context) (string, error) {
		return i.drafter.CreateReplyDraft(ctx, req.UserID, req.MessageID, draft)
	})
	id, err := result.Wait(ctx, i.timeout)
	if errors.Is(err, task.ErrTimeout) {
		i.logger.Warn("reply draft still pending, watch abandoned",
			logging.MessageID(req.MessageID),
			slog.Duration("timeout", i.timeout))
		out.Status = MsgStillWorking
		return out
	}
	if err != nil {
		return i.failed(req, err)
	}

	out.OK = true
	out.Status = MsgInjected
	out.DraftID = id
	return out
}

func (i *Injector) failed(req Request, err error) Outcome {
	i.logger.Warn("quotation injection failed",
		logging.MessageID(req.MessageID),
		logging.Err(err))
	return Outcome{Status: fmt.Sprintf("Failed to attach quotation: %v", err)}
}

func attachmentName(t *quotation.Table) string {
	if t.QuotationNo == "" {
		return "quotation.pdf"
	}
	return t.QuotationNo + ".pdf"
}
