package inbox

import (
	"net/url"
	"strings"
	"unicode"
)

// WhatsAppWebURL is the WhatsApp Web entry point.
const WhatsAppWebURL = "https://web.whatsapp.com"

// WhatsAppLink builds a WhatsApp Web link. Without a phone number it opens
// WhatsApp Web itself; otherwise it opens a chat with the number, keeping
// only its digits, and pre-fills text when given.
func WhatsAppLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return WhatsAppWebURL
	}

	q := url.Values{}
	q.Set("phone", digits)
	if text != "" {
		q.Set("text", text)
	}
	return WhatsAppWebURL + "/send?" + q.Encode()
}
