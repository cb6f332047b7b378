package grid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/msmeflow/quoteflow/internal/upload"
)

// MinColumnWidth is the narrowest a column can be, in pixels.
const MinColumnWidth = 100

var (
	ErrOutOfRange = errors.New("cell out of range")
	ErrNotEditing = errors.New("no cell is being edited")
	ErrNoChanges  = errors.New("grid has no changes to save")
	ErrEmptySheet = errors.New("workbook has no sheets")
)

// Key is a navigation key sent while a cell is being edited.
type Key string

const (
	KeyTab      Key = "Tab"
	KeyShiftTab Key = "Shift+Tab"
	KeyUp       Key = "ArrowUp"
	KeyDown     Key = "ArrowDown"
	KeyEnter    Key = "Enter"
)

// Cursor is the position of the cell being edited.
type Cursor struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is an editable two-dimensional table of cell values. Rows are padded
// to the widest row so every row has Cols cells.
type Grid struct {
	mu       sync.Mutex
	original [][]string
	values   [][]string
	widths   []int
	editing  *Cursor
	// workbook and sheet are set when the grid was loaded from xlsx; saving
	// rewrites that sheet and keeps the others.
	workbook []byte
	sheet    string
}

// New builds a grid from a matrix of values.
func New(values [][]string) *Grid {
	v := normalize(values)
	return &Grid{
		original: clone(v),
		values:   v,
		widths:   EstimateWidths(v),
	}
}

// LoadXLSX reads the first sheet of a workbook.
func LoadXLSX(data []byte) (*Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	g := New(rows)
	g.workbook = append([]byte(nil), data...)
	g.sheet = sheets[0]
	return g, nil
}

// EstimateWidths sizes each column to its longest cell, 8 pixels per
// character plus 24 pixels of padding, never below MinColumnWidth.
func EstimateWidths(values [][]string) []int {
	cols := 0
	for _, row := range values {
		cols = max(cols, len(row))
	}
	widths := make([]int, cols)
	for i := range widths {
		widths[i] = MinColumnWidth
	}
	for _, row := range values {
		for j, cell := range row {
			widths[j] = max(widths[j], len([]rune(cell))*8+24)
		}
	}
	return widths
}

func (g *Grid) Rows() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.values)
}

func (g *Grid) Cols() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cols()
}

func (g *Grid) cols() int {
	if len(g.values) == 0 {
		return 0
	}
	return len(g.values[0])
}

// Values returns a copy of the current cell values.
func (g *Grid) Values() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return clone(g.values)
}

// Widths returns a copy of the column widths in pixels.
func (g *Grid) Widths() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.widths...)
}

// Editing returns the cursor of the cell being edited, if any.
func (g *Grid) Editing() (Cursor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editing == nil {
		return Cursor{}, false
	}
	return *g.editing, true
}

// Edit starts editing a cell.
func (g *Grid) Edit(row, col int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inRange(row, col) {
		return ErrOutOfRange
	}
	g.editing = &Cursor{Row: row, Col: col}
	return nil
}

// Input replaces the value of the cell being edited.
func (g *Grid) Input(value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editing == nil {
		return ErrNotEditing
	}
	g.values[g.editing.Row][g.editing.Col] = value
	return nil
}

// SetCell replaces one cell value without touching the edit cursor.
func (g *Grid) SetCell(row, col int, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inRange(row, col) {
		return ErrOutOfRange
	}
	g.values[row][col] = value
	return nil
}

// EndEdit stops editing.
func (g *Grid) EndEdit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.editing = nil
}

// Press moves the edit cursor. Tab and Shift+Tab move within the row and do
// not wrap; arrows move within the column. Moves past an edge are ignored.
// Enter ends editing. It reports the cursor and whether editing continues.
func (g *Grid) Press(k Key) (Cursor, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editing == nil {
		return Cursor{}, false, ErrNotEditing
	}

	next := *g.editing
	switch k {
	case KeyEnter:
		g.editing = nil
		return next, false, nil
	case KeyTab:
		next.Col++
	case KeyShiftTab:
		next.Col--
	case KeyDown:
		next.Row++
	case KeyUp:
		next.Row--
	default:
		return next, true, fmt.Errorf("unsupported key %q", k)
	}
	if g.inRange(next.Row, next.Col) {
		*g.editing = next
	}
	return *g.editing, true, nil
}

// ResizeColumn changes a column width by delta pixels, keeping it at or
// above MinColumnWidth, and returns the new width.
func (g *Grid) ResizeColumn(col, delta int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if col < 0 || col >= len(g.widths) {
		return 0, ErrOutOfRange
	}
	g.widths[col] = max(MinColumnWidth, g.widths[col]+delta)
	return g.widths[col], nil
}

// HasChanges reports whether any cell differs from the loaded values.
func (g *Grid) HasChanges() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !reflect.DeepEqual(g.values, g.original)
}

// XLSX serializes the current values. A grid loaded from a workbook
// rewrites its first sheet in place.
func (g *Grid) XLSX() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.xlsx()
}

func (g *Grid) xlsx() ([]byte, error) {
	var f *excelize.File
	sheet := g.sheet
	if g.workbook != nil {
		var err error
		if f, err = excelize.OpenReader(bytes.NewReader(g.workbook)); err != nil {
			return nil, fmt.Errorf("failed to reopen workbook: %w", err)
		}
	} else {
		f = excelize.NewFile()
		sheet = "Sheet1"
	}
	defer f.Close()

	for i, row := range g.values {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Updater overwrites a stored object.
type Updater interface {
	Update(ctx context.Context, userID, path string, data []byte) (upload.UploadedFile, error)
}

// Save serializes the grid and overwrites the object at path. On success
// the saved values become the new baseline for HasChanges.
func (g *Grid) Save(ctx context.Context, u Updater, userID, path string) (upload.UploadedFile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if reflect.DeepEqual(g.values, g.original) {
		return upload.UploadedFile{}, ErrNoChanges
	}
	data, err := g.xlsx()
	if err != nil {
		return upload.UploadedFile{}, err
	}
	file, err := u.Update(ctx, userID, path, data)
	if err != nil {
		return upload.UploadedFile{}, fmt.Errorf("failed to save grid: %w", err)
	}
	g.original = clone(g.values)
	if g.workbook != nil {
		g.workbook = data
	}
	return file, nil
}

func (g *Grid) inRange(row, col int) bool {
	return row >= 0 && row < len(g.values) && col >= 0 && col < g.cols()
}

func normalize(values [][]string) [][]string {
	cols := 0
	for _, row := range values {
		cols = max(cols, len(row))
	}
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, cols)
		copy(out[i], row)
	}
	return out
}

func clone(values [][]string) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = append([]string(nil), row...)
	}
	return out
}
