package grid

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Pager pages through a PDF document. The current page is always within
// [1, NumPages].
type Pager struct {
	reader   *pdf.Reader
	numPages int
	page     int
}

// NewPager opens a PDF held in memory.
func NewPager(data []byte) (*Pager, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	n := r.NumPage()
	if n < 1 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	return &Pager{reader: r, numPages: n, page: 1}, nil
}

func (p *Pager) NumPages() int { return p.numPages }

func (p *Pager) Page() int { return p.page }

// Next moves forward one page, stopping at the last page.
func (p *Pager) Next() int { return p.Goto(p.page + 1) }

// Prev moves back one page, stopping at the first page.
func (p *Pager) Prev() int { return p.Goto(p.page - 1) }

// Goto clamps n into [1, NumPages] and makes it the current page.
func (p *Pager) Goto(n int) int {
	p.page = min(max(n, 1), p.numPages)
	return p.page
}

// Text extracts the plain text of the current page.
func (p *Pager) Text() (string, error) {
	page := p.reader.Page(p.page)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", p.page)
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text of page %d: %w", p.page, err)
	}
	return text, nil
}
