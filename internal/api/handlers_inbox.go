package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/inbox"
)

type attachmentPayload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	// Data is base64 in JSON.
	Data []byte `json:"data"`
}

type draftRequest struct {
	To          []string            `json:"to"`
	Cc          []string            `json:"cc"`
	Bcc         []string            `json:"bcc"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	IsHTML      bool                `json:"isHtml"`
	Attachments []attachmentPayload `json:"attachments"`
}

func (r draftRequest) draft() inbox.Draft {
	d := inbox.Draft{
		To:      r.To,
		Cc:      r.Cc,
		Bcc:     r.Bcc,
		Subject: r.Subject,
		Body:    r.Body,
		IsHTML:  r.IsHTML,
	}
	for _, a := range r.Attachments {
		d.Attachments = append(d.Attachments, inbox.OutgoingAttachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	}
	return d
}

func (s *Server) mailbox() (Mailbox, error) {
	mb, err := s.deps.Mailbox()
	if err != nil {
		return nil, fromError("Gmail is not available", err)
	}
	return mb, nil
}

func (s *Server) inbox() (Inbox, error) {
	svc, err := s.deps.Inbox()
	if err != nil {
		return nil, fromError("Gmail is not available", err)
	}
	return svc, nil
}

func (s *Server) handleMailboxSnapshot(c echo.Context) error {
	mb, err := s.mailbox()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mb.Snapshot())
}

// handleMailboxLoad reloads the first page. A failed load keeps the last
// good list, which is returned with the error details.
func (s *Server) handleMailboxLoad(c echo.Context) error {
	mb, err := s.mailbox()
	if err != nil {
		return err
	}
	snap, err := mb.Load(c.Request().Context())
	if err != nil {
		return fromError("failed to load messages", err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleMailboxMore(c echo.Context) error {
	mb, err := s.mailbox()
	if err != nil {
		return err
	}
	snap, err := mb.LoadMore(c.Request().Context())
	if err != nil {
		return fromError("failed to load more messages", err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleOpenMessage(c echo.Context) error {
	svc, err := s.inbox()
	if err != nil {
		return err
	}
	id := c.Param("id")
	msg, err := svc.Open(c.Request().Context(), id)
	if err != nil {
		return fromError(fmt.Sprintf("failed to open message %s", id), err)
	}
	if mb, err := s.deps.Mailbox(); err == nil {
		mb.MarkRead(id)
	}
	return c.JSON(http.StatusOK, msg)
}

// handleAttachment streams an attachment. filename and mimeType query
// parameters set the download headers.
func (s *Server) handleAttachment(c echo.Context) error {
	svc, err := s.inbox()
	if err != nil {
		return err
	}
	data, err := svc.Attachment(c.Request().Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		return fromError("failed to download attachment", err)
	}

	contentType := c.QueryParam("mimeType")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if name := c.QueryParam("filename"); name != "" {
		return attachment(c, name, contentType, data)
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func (s *Server) handleSend(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	svc, err := s.inbox()
	if err != nil {
		return err
	}
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	switch {
	case len(req.To) == 0:
		return NewValidationError("to")
	case req.Subject == "":
		return NewValidationError("subject")
	case req.Body == "":
		return NewValidationError("body")
	}

	id, err := svc.Send(c.Request().Context(), sess.User.ID, req.draft())
	if err != nil {
		return fromError("failed to send message", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleReply(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	svc, err := s.inbox()
	if err != nil {
		return err
	}
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Body == "" {
		return NewValidationError("body")
	}

	id, err := svc.Reply(c.Request().Context(), sess.User.ID, c.Param("id"), req.draft())
	if err != nil {
		return fromError("failed to send reply", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleWhatsApp(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"url": inbox.WhatsAppLink(c.QueryParam("phone"), c.QueryParam("text")),
	})
}
