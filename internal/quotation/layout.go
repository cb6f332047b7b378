package quotation

// TermsLayout holds the vertical metrics used to place the terms block.
// All values are in millimetres from the top of the page.
type TermsLayout struct {
	PageHeight float64
	TopMargin  float64
	// FooterMargin is kept free at the bottom of every page for the footer.
	FooterMargin float64
	// RequiredSpace is the room the terms block needs below the table to
	// start on the same page.
	RequiredSpace float64
	HeadingHeight float64
	LineHeight    float64
}

// DefaultTermsLayout fits an A4 portrait page.
var DefaultTermsLayout = TermsLayout{
	PageHeight:    297,
	TopMargin:     15,
	FooterMargin:  35,
	RequiredSpace: 70,
	HeadingHeight: 8,
	LineHeight:    5.5,
}

// Placement is where one line of the terms block is written. Page is
// relative to the page the table ended on (0 is that page).
type Placement struct {
	Page int
	Y    float64
	Text string
}

// Plan places the terms heading and lines starting below startY.
//
// When less than RequiredSpace remains between startY and the page bottom,
// the block starts on a new page. A line whose bottom would pass
// PageHeight-FooterMargin moves to a new page along with the rest.
func (l TermsLayout) Plan(startY float64, heading string, lines []string) []Placement {
	page, y := 0, startY
	if l.PageHeight-startY < l.RequiredSpace {
		page, y = 1, l.TopMargin
	}

	out := make([]Placement, 0, len(lines)+1)
	out = append(out, Placement{Page: page, Y: y, Text: heading})
	y += l.HeadingHeight

	limit := l.PageHeight - l.FooterMargin
	for _, line := range lines {
		if y+l.LineHeight > limit {
			page++
			y = l.TopMargin
		}
		out = append(out, Placement{Page: page, Y: y, Text: line})
		y += l.LineHeight
	}
	return out
}

// DefaultTerms are printed when no terms are configured.
var DefaultTerms = []string{
	"Prices are ex-works and exclusive of taxes, packing and freight.",
	"GST will be charged extra as applicable at the time of dispatch.",
	"Delivery: 2 to 3 weeks from the date of a confirmed purchase order.",
	"Payment: 100% against proforma invoice before dispatch.",
	"Validity: this quotation is valid for 30 days from the date above.",
	"Warranty: 12 months from the date of supply against manufacturing defects.",
}
