package quotation

import "strings"

// DefaultReplyText is the canned message sent with the quotation PDF.
const DefaultReplyText = "Thank you for your interest. Please find attached our quotation for the items you requested. " +
	"Let us know if you need any changes or further details."

// ReplyText returns the canned reply addressed to the company when known.
func ReplyText(companyName string) string {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return "Dear Sir/Madam,\n\n" + DefaultReplyText + "\n\nBest regards"
	}
	return "Dear " + name + " team,\n\n" + DefaultReplyText + "\n\nBest regards"
}
