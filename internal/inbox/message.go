package inbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
	gmail "google.golang.org/api/gmail/v1"
)

var (
	cidRef = regexp.MustCompile(`(?i)cid:([^"'\s)>]+)`)

	htmlPolicy = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.AllowDataURIImages()
		return p
	}()
)

// parseMessage walks the MIME tree of a full message, separating the text
// body, the HTML body and attachment metadata. The first text/plain and
// text/html parts without a filename are the bodies.
func parseMessage(msg *gmail.Message) (*Message, error) {
	out := &Message{Summary: summarize(msg)}
	out.To = HeaderValue(msg, "To")
	out.Cc = HeaderValue(msg, "Cc")
	out.MessageID = HeaderValue(msg, "Message-ID")
	out.References = HeaderValue(msg, "References")

	var walkErr error
	walkParts(msg.Payload, func(part *gmail.MessagePart) {
		if walkErr != nil || strings.HasPrefix(part.MimeType, "multipart/") {
			return
		}
		contentID := strings.Trim(partHeader(part, "Content-ID"), "<> ")

		if part.Filename == "" && contentID == "" {
			switch {
			case part.MimeType == "text/plain" && out.Text == "":
				out.Text, walkErr = bodyString(part)
			case part.MimeType == "text/html" && out.HTML == "":
				out.HTML, walkErr = bodyString(part)
			}
			return
		}
		if part.Body == nil {
			return
		}

		att := Attachment{
			PartID:       part.PartId,
			AttachmentID: part.Body.AttachmentId,
			Filename:     part.Filename,
			MimeType:     part.MimeType,
			Size:         part.Body.Size,
			ContentID:    contentID,
		}
		if part.Body.Data != "" {
			att.Inline, walkErr = decodeBody(part.Body.Data)
		}
		out.Attachments = append(out.Attachments, att)
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func bodyString(part *gmail.MessagePart) (string, error) {
	if part.Body == nil || part.Body.Data == "" {
		return "", nil
	}
	b, err := decodeBody(part.Body.Data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// walkParts recursively walks through message parts.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// AttachmentFetcher returns attachment bytes for inline image resolution.
type AttachmentFetcher func(ctx context.Context, messageID, attachmentID string) ([]byte, error)

// resolveInlineImages replaces cid: references with data URLs built from the
// matching attachments. References without a match are left alone.
func resolveInlineImages(ctx context.Context, m *Message, fetch AttachmentFetcher) (string, error) {
	if m.HTML == "" || !cidRef.MatchString(m.HTML) {
		return m.HTML, nil
	}

	byCID := map[string]*Attachment{}
	for i := range m.Attachments {
		if cid := m.Attachments[i].ContentID; cid != "" {
			byCID[strings.ToLower(cid)] = &m.Attachments[i]
		}
	}

	var firstErr error
	resolved := cidRef.ReplaceAllStringFunc(m.HTML, func(ref string) string {
		cid := strings.ToLower(cidRef.FindStringSubmatch(ref)[1])
		att, ok := byCID[cid]
		if !ok || firstErr != nil {
			return ref
		}
		data := att.Inline
		if data == nil && att.AttachmentID != "" {
			var err error
			if data, err = fetch(ctx, m.ID, att.AttachmentID); err != nil {
				firstErr = fmt.Errorf("failed to resolve inline image %s: %w", cid, err)
				return ref
			}
			att.Inline = data
		}
		return "data:" + att.MimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	})
	return resolved, firstErr
}

// SanitizeHTML removes scripts and unsafe attributes, keeping data URL
// images.
func SanitizeHTML(html string) string {
	return htmlPolicy.Sanitize(html)
}

// htmlToText converts an HTML body to markdown text.
func htmlToText(html string) string {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}
