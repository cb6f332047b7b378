package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msmeflow/quoteflow/internal/inbox"
)

type fakeMailbox struct {
	snap    inbox.Snapshot
	loadErr error
	read    []string
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{snap: inbox.Snapshot{Messages: []inbox.Summary{}}}
}

func (f *fakeMailbox) Load(context.Context) (inbox.Snapshot, error) {
	if f.loadErr != nil {
		return f.snap, f.loadErr
	}
	f.snap = inbox.Snapshot{
		Messages: []inbox.Summary{{ID: "m1", Subject: "RFQ valves", Unread: true}},
		Page:     1,
		HasMore:  true,
	}
	return f.snap, nil
}

func (f *fakeMailbox) LoadMore(context.Context) (inbox.Snapshot, error) {
	f.snap.Messages = append(f.snap.Messages, inbox.Summary{ID: "m2", Subject: "RFQ pumps"})
	f.snap.Page++
	f.snap.HasMore = false
	return f.snap, nil
}

func (f *fakeMailbox) Snapshot() inbox.Snapshot { return f.snap }

func (f *fakeMailbox) MarkRead(id string) { f.read = append(f.read, id) }

type fakeInbox struct {
	sent    []inbox.Draft
	replyTo string
}

func (f *fakeInbox) Open(_ context.Context, id string) (*inbox.Message, error) {
	if id != "m1" {
		return nil, errors.New("message not found")
	}
	return &inbox.Message{
		Summary: inbox.Summary{ID: id, Subject: "RFQ valves"},
		Text:    "Please quote 10 brass ball valves",
	}, nil
}

func (f *fakeInbox) Attachment(context.Context, string, string) ([]byte, error) {
	return []byte("%PDF-1.4 test"), nil
}

func (f *fakeInbox) Send(_ context.Context, _ string, d inbox.Draft) (string, error) {
	f.sent = append(f.sent, d)
	return "sent-1", nil
}

func (f *fakeInbox) Reply(_ context.Context, _, messageID string, d inbox.Draft) (string, error) {
	f.replyTo = messageID
	f.sent = append(f.sent, d)
	return "sent-2", nil
}

func TestInbox_LoadAndMore(t *testing.T) {
	env := newTestEnv(t)

	snap := decode[inbox.Snapshot](t, env.do(t, http.MethodGet, "/api/inbox", nil))
	assert.Empty(t, snap.Messages)

	rec := env.do(t, http.MethodPost, "/api/inbox/load", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[inbox.Snapshot](t, rec)
	require.Len(t, snap.Messages, 1)
	assert.True(t, snap.HasMore)

	rec = env.do(t, http.MethodPost, "/api/inbox/more", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[inbox.Snapshot](t, rec)
	assert.Len(t, snap.Messages, 2)
	assert.Equal(t, 2, snap.Page)
	assert.False(t, snap.HasMore)
}

func TestInbox_LoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.mailbox.loadErr = errors.New("gmail unavailable")

	rec := env.do(t, http.MethodPost, "/api/inbox/load", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "UPSTREAM_ERROR", decode[APIError](t, rec).Code)
}

func TestInbox_OpenMarksRead(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/inbox/messages/m1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RFQ valves", decode[inbox.Message](t, rec).Subject)
	assert.Equal(t, []string{"m1"}, env.mailbox.read)

	rec = env.do(t, http.MethodGet, "/api/inbox/messages/nope", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInbox_Attachment(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/inbox/messages/m1/attachments/a1?filename=datasheet.pdf&mimeType=application/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "datasheet.pdf")
	assert.Equal(t, "%PDF-1.4 test", rec.Body.String())
}

func TestInbox_GenerateFromMessage(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()

	rec := env.do(t, http.MethodPost, "/api/quotations", generateRequest{MessageID: "m1"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, source := env.srv.Workspace().Quotation()
	assert.Equal(t, "m1", source)
}

func TestInbox_SendValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/inbox/send", draftRequest{To: []string{"a@example.com"}, Subject: "Hi", Body: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.signIn()
	tests := []struct {
		req   draftRequest
		field string
	}{
		{draftRequest{Subject: "Hi", Body: "x"}, "to"},
		{draftRequest{To: []string{"a@example.com"}, Body: "x"}, "subject"},
		{draftRequest{To: []string{"a@example.com"}, Subject: "Hi"}, "body"},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, "/api/inbox/send", tt.req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.field)
		assert.Contains(t, decode[APIError](t, rec).Message, "field: "+tt.field)
	}
	assert.Empty(t, env.inbox.sent)
}

func TestInbox_SendAndReply(t *testing.T) {
	env := newTestEnv(t)
	env.signIn()

	rec := env.do(t, http.MethodPost, "/api/inbox/send", draftRequest{
		To:          []string{"buyer@example.com"},
		Subject:     "Quotation",
		Body:        "Attached.",
		Attachments: []attachmentPayload{{Filename: "q.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sent-1", decode[map[string]string](t, rec)["id"])
	require.Len(t, env.inbox.sent, 1)
	require.Len(t, env.inbox.sent[0].Attachments, 1)
	assert.Equal(t, []byte("%PDF"), env.inbox.sent[0].Attachments[0].Data)

	rec = env.do(t, http.MethodPost, "/api/inbox/messages/m1/reply", draftRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/inbox/messages/m1/reply", draftRequest{Body: "Thanks"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m1", env.inbox.replyTo)
}

func TestWhatsApp(t *testing.T) {
	env := newTestEnv(t)

	body := decode[map[string]string](t, env.do(t, http.MethodGet, "/api/whatsapp?phone=%2B91+98765-43210", nil))
	assert.Equal(t, "https://web.whatsapp.com/send?phone=919876543210", body["url"])

	body = decode[map[string]string](t, env.do(t, http.MethodGet, "/api/whatsapp", nil))
	assert.Equal(t, inbox.WhatsAppWebURL, body["url"])
}
