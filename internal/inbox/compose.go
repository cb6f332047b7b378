package inbox

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// BuildMIME renders a draft as an RFC 5322 message. Drafts without
// attachments are single-part.
func BuildMIME(d Draft, now time.Time) ([]byte, error) {
	if len(d.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	var h mail.Header
	h.SetDate(now)
	h.SetSubject(d.Subject)
	for _, f := range []struct {
		key   string
		value []string
	}{{"To", d.To}, {"Cc", d.Cc}, {"Bcc", d.Bcc}} {
		if len(f.value) == 0 {
			continue
		}
		addrs, err := mail.ParseAddressList(strings.Join(f.value, ", "))
		if err != nil {
			return nil, fmt.Errorf("invalid %s address: %w", f.key, err)
		}
		h.SetAddressList(f.key, addrs)
	}
	if d.InReplyTo != "" {
		h.Set("In-Reply-To", d.InReplyTo)
	}
	if d.References != "" {
		h.Set("References", d.References)
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	bodyType := "text/plain"
	if d.IsHTML {
		bodyType = "text/html"
	}
	charset := map[string]string{"charset": "utf-8"}

	var buf bytes.Buffer
	if len(d.Attachments) == 0 {
		h.SetContentType(bodyType, charset)
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message writer: %w", err)
		}
		if _, err := w.Write([]byte(d.Body)); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	var ih mail.InlineHeader
	ih.SetContentType(bodyType, charset)
	bw, err := mw.CreateSingleInline(ih)
	if err != nil {
		return nil, err
	}
	if _, err := bw.Write([]byte(d.Body)); err != nil {
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}

	for _, a := range d.Attachments {
		var ah mail.AttachmentHeader
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.SetContentType(ct, nil)
		ah.SetFilename(a.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
		if _, err := aw.Write(a.Data); err != nil {
			return nil, err
		}
		if err := aw.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// replySubject prefixes "Re: " unless already present.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// references builds the References header of a reply.
func references(original *Message) string {
	if original.References != "" {
		return original.References + " " + original.MessageID
	}
	return original.MessageID
}
