package compose

import "strings"

// HeuristicsVersion identifies the element matching rules below. Bump it
// whenever a rule changes.
const HeuristicsVersion = "webmail-a11y/1"

// User-facing status messages for a host page that does not match.
const (
	MsgReplyButtonNotFound = "Reply button not found"
	MsgComposeBoxNotFound  = "Compose box not found"
)

// Element is one node of an accessibility snapshot of the host page.
type Element struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Editable bool   `json:"editable"`
}

// PageSnapshot is the accessibility view of the host page reported by the
// content script.
type PageSnapshot struct {
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
}

// FindReplyButton returns the first button whose accessible name contains
// "reply", ignoring case.
func FindReplyButton(s PageSnapshot) (Element, bool) {
	for _, e := range s.Elements {
		if strings.EqualFold(e.Role, "button") && strings.Contains(strings.ToLower(e.Name), "reply") {
			return e, true
		}
	}
	return Element{}, false
}

// FindComposeBox returns the first text box or editable element.
func FindComposeBox(s PageSnapshot) (Element, bool) {
	for _, e := range s.Elements {
		if strings.EqualFold(e.Role, "textbox") || e.Editable {
			return e, true
		}
	}
	return Element{}, false
}

// Target is the reply button and compose box found on the host page.
type Target struct {
	ReplyButton Element `json:"replyButton"`
	ComposeBox  Element `json:"composeBox"`
	Version     string  `json:"version"`
}

// Locate finds both elements. When either is missing it returns the status
// message to show instead.
func Locate(s PageSnapshot) (Target, string, bool) {
	reply, ok := FindReplyButton(s)
	if !ok {
		return Target{}, MsgReplyButtonNotFound, false
	}
	box, ok := FindComposeBox(s)
	if !ok {
		return Target{}, MsgComposeBoxNotFound, false
	}
	return Target{ReplyButton: reply, ComposeBox: box, Version: HeuristicsVersion}, "", true
}
