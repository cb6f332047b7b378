package quotation

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MinRows is the number of rows a table is padded to.
const MinRows = 3

// Column identifies one of the seven table columns.
type Column int

const (
	ColSrNo Column = iota
	ColDescription
	ColMake
	ColCode
	ColRange
	ColRate
	ColRemark
	numColumns
)

// ColumnSpec is the header text and fixed width of a column. Widths are in
// millimetres on the PDF page and in character units for XLSX.
type ColumnSpec struct {
	Header     string
	PDFWidth   float64
	SheetWidth float64
}

// Columns lists the seven fixed columns in order.
var Columns = [numColumns]ColumnSpec{
	ColSrNo:        {Header: "Sr. No.", PDFWidth: 12, SheetWidth: 8},
	ColDescription: {Header: "Description", PDFWidth: 52, SheetWidth: 40},
	ColMake:        {Header: "Make", PDFWidth: 22, SheetWidth: 16},
	ColCode:        {Header: "Code", PDFWidth: 24, SheetWidth: 16},
	ColRange:       {Header: "Range", PDFWidth: 24, SheetWidth: 16},
	ColRate:        {Header: "Rate", PDFWidth: 18, SheetWidth: 12},
	ColRemark:      {Header: "Remark", PDFWidth: 38, SheetWidth: 28},
}

var (
	ErrRowOutOfRange    = errors.New("row index out of range")
	ErrColumnOutOfRange = errors.New("column index out of range")
)

// Table is the editable quotation.
type Table struct {
	CompanyName string `json:"companyName"`
	QuotationNo string `json:"quotationNo"`
	Date        string `json:"date"`
	Rows        []Row  `json:"rows"`
}

// NewTable builds a table from an envelope and pads it to MinRows.
func NewTable(env Envelope, now time.Time) *Table {
	t := &Table{
		CompanyName: env.CompanyName,
		QuotationNo: NewQuotationNo(now),
		Date:        now.Format("02/01/2006"),
		Rows:        append([]Row(nil), env.Products...),
	}
	t.Pad()
	return t
}

// NewQuotationNo returns a fresh quotation number such as
// "QT-20240501-1A2B3C".
func NewQuotationNo(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("QT-%s-%X", now.Format("20060102"), id[:3])
}

// Pad appends blank rows until there are MinRows, numbering them after the
// last row.
func (t *Table) Pad() {
	for len(t.Rows) < MinRows {
		t.Rows = append(t.Rows, Row{SrNo: len(t.Rows) + 1})
	}
}

// Clone returns a copy that shares no rows with t. A nil table clones to nil.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := *t
	c.Rows = append([]Row(nil), t.Rows...)
	return &c
}

// AddRow appends a blank row with the next serial number.
func (t *Table) AddRow() {
	t.Rows = append(t.Rows, Row{SrNo: len(t.Rows) + 1})
}

// DeleteRow removes row i and renumbers the rest.
func (t *Table) DeleteRow(i int) error {
	if i < 0 || i >= len(t.Rows) {
		return ErrRowOutOfRange
	}
	t.Rows = append(t.Rows[:i], t.Rows[i+1:]...)
	t.Renumber()
	return nil
}

// Renumber sets serial numbers to 1..n.
func (t *Table) Renumber() {
	for i := range t.Rows {
		t.Rows[i].SrNo = i + 1
	}
}

// SetCell sets one cell. Setting the serial column requires an integer.
func (t *Table) SetCell(row int, col Column, value string) error {
	if row < 0 || row >= len(t.Rows) {
		return ErrRowOutOfRange
	}
	r := &t.Rows[row]
	switch col {
	case ColSrNo:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("serial number must be an integer: %w", err)
		}
		r.SrNo = n
	case ColDescription:
		r.Description = value
	case ColMake:
		r.Make = value
	case ColCode:
		r.Code = value
	case ColRange:
		r.Range = value
	case ColRate:
		r.Rate = value
	case ColRemark:
		r.Remark = value
	default:
		return ErrColumnOutOfRange
	}
	return nil
}

// Cells returns the row as seven strings in column order.
func (r Row) Cells() []string {
	return []string{
		strconv.Itoa(r.SrNo),
		r.Description,
		r.Make,
		r.Code,
		r.Range,
		r.Rate,
		r.Remark,
	}
}

// Headers returns the column headers in order.
func Headers() []string {
	out := make([]string, numColumns)
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}

// Matrix returns the header row followed by every row's cells.
func (t *Table) Matrix() [][]string {
	m := make([][]string, 0, len(t.Rows)+1)
	m = append(m, Headers())
	for _, r := range t.Rows {
		m = append(m, r.Cells())
	}
	return m
}
