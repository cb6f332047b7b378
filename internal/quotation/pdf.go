package quotation

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const (
	pageMarginX  = 10.0
	contentWidth = 190.0
	cellLineH    = 5.0
	cellPadX     = 1.5
)

// PDFOptions configures RenderPDF.
type PDFOptions struct {
	// HeaderImage and FooterImage are PNG or JPEG bytes. Either may be nil.
	HeaderImage []byte
	FooterImage []byte
	Terms       []string
	Layout      TermsLayout
}

// RenderPDF lays out the table as an A4 document.
func RenderPDF(t *Table, opts PDFOptions) ([]byte, error) {
	layout := opts.Layout
	if layout.PageHeight == 0 {
		layout = DefaultTermsLayout
	}
	terms := opts.Terms
	if len(terms) == 0 {
		terms = DefaultTerms
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMarginX, layout.TopMargin, pageMarginX)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	y := layout.TopMargin
	if len(opts.HeaderImage) > 0 {
		h, err := placeImage(pdf, "header", opts.HeaderImage, y, 0)
		if err != nil {
			return nil, err
		}
		y += h + 4
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(pageMarginX, y)
	pdf.CellFormat(contentWidth, 9, "QUOTATION", "", 1, "C", false, 0, "")
	y += 11

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		"To: " + t.CompanyName,
		"Quotation No: " + t.QuotationNo,
		"Date: " + t.Date,
	} {
		pdf.Text(pageMarginX, y+4, tr(line))
		y += 6
	}
	y += 2

	limit := layout.PageHeight - layout.FooterMargin
	y = drawHeaderRow(pdf, tr, y)
	pdf.SetFont("Helvetica", "", 9)
	for _, r := range t.Rows {
		cells := r.Cells()
		lines := make([][]string, len(cells))
		maxLines := 1
		for i, c := range cells {
			lines[i] = pdf.SplitText(tr(c), Columns[i].PDFWidth-2*cellPadX)
			if len(lines[i]) > maxLines {
				maxLines = len(lines[i])
			}
		}
		rowH := float64(maxLines)*cellLineH + 1
		if y+rowH > limit {
			pdf.AddPage()
			y = drawHeaderRow(pdf, tr, layout.TopMargin)
			pdf.SetFont("Helvetica", "", 9)
		}
		x := pageMarginX
		for i, cellLines := range lines {
			w := Columns[i].PDFWidth
			pdf.Rect(x, y, w, rowH, "D")
			for k, l := range cellLines {
				pdf.Text(x+cellPadX, y+float64(k+1)*cellLineH-1, l)
			}
			x += w
		}
		y += rowH
	}

	var termLines []string
	pdf.SetFont("Helvetica", "", 9)
	for i, term := range terms {
		termLines = append(termLines, pdf.SplitText(tr(strconv.Itoa(i+1)+". "+term), contentWidth)...)
	}
	basePage := pdf.PageNo()
	for i, p := range layout.Plan(y+8, "Terms and Conditions", termLines) {
		for pdf.PageNo() < basePage+p.Page {
			pdf.AddPage()
		}
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 11)
		} else {
			pdf.SetFont("Helvetica", "", 9)
		}
		pdf.Text(pageMarginX, p.Y+cellLineH-1, p.Text)
	}

	if len(opts.FooterImage) > 0 {
		if _, err := placeImage(pdf, "footer", opts.FooterImage, limit+2, layout.FooterMargin-4); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render quotation PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeaderRow(pdf *fpdf.Fpdf, tr func(string) string, y float64) float64 {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.SetXY(pageMarginX, y)
	for _, c := range Columns {
		pdf.CellFormat(c.PDFWidth, 7, tr(c.Header), "1", 0, "C", true, 0, "")
	}
	return y + 7
}

// placeImage draws an image across the content width at y and returns its
// height. A positive maxH scales the image down to fit.
func placeImage(pdf *fpdf.Fpdf, name string, data []byte, y, maxH float64) (float64, error) {
	imgType, err := imageType(data)
	if err != nil {
		return 0, fmt.Errorf("%s image: %w", name, err)
	}
	info := pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imgType}, bytes.NewReader(data))
	if pdf.Err() {
		return 0, fmt.Errorf("failed to load %s image: %w", name, pdf.Error())
	}

	w := contentWidth
	h := w * info.Height() / info.Width()
	if maxH > 0 && h > maxH {
		h = maxH
		w = h * info.Width() / info.Height()
	}
	x := pageMarginX + (contentWidth-w)/2
	pdf.ImageOptions(name, x, y, w, h, false, fpdf.ImageOptions{ImageType: imgType}, 0, "")
	return h, nil
}

func imageType(data []byte) (string, error) {
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG", nil
	case "image/jpeg":
		return "JPG", nil
	case "image/gif":
		return "GIF", nil
	}
	return "", fmt.Errorf("unsupported image format")
}
