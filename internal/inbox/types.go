package inbox

// Summary is a message header row in the mailbox list.
type Summary struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
	Unread   bool   `json:"unread"`
}

// Attachment is attachment metadata found while walking a message.
type Attachment struct {
	PartID       string `json:"partId"`
	AttachmentID string `json:"attachmentId,omitempty"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	ContentID    string `json:"contentId,omitempty"`
	// Inline holds body data that Gmail returned with the part itself.
	Inline []byte `json:"-"`
}

// Message is an opened message.
type Message struct {
	Summary
	To          string       `json:"to,omitempty"`
	Cc          string       `json:"cc,omitempty"`
	MessageID   string       `json:"messageId,omitempty"`
	References  string       `json:"references,omitempty"`
	Text        string       `json:"text"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments"`
}

// OutgoingAttachment is a file attached to a sent message or draft.
type OutgoingAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft is an outgoing message.
type Draft struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Body        string
	IsHTML      bool
	Attachments []OutgoingAttachment

	// InReplyTo and References thread a reply.
	InReplyTo  string
	References string
	ThreadID   string
}
