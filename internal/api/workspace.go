package api

import (
	"sync"

	"github.com/msmeflow/quoteflow/internal/grid"
	"github.com/msmeflow/quoteflow/internal/quotation"
)

// Workspace is the editing state of the single local user: the quotation
// being prepared, the open spreadsheet and the open PDF. The table never
// leaves the lock: callers get and hand in copies.
type Workspace struct {
	mu sync.Mutex

	table *quotation.Table
	// sourceID is the message the quotation answers, if any.
	sourceID string

	grid     *grid.Grid
	gridPath string

	pager    *grid.Pager
	pagerRef string
}

func NewWorkspace() *Workspace {
	return &Workspace{}
}

// Quotation returns a copy of the current table and its source message id.
func (w *Workspace) Quotation() (*quotation.Table, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.table.Clone(), w.sourceID
}

// SetQuotation replaces the current table with a copy of t.
func (w *Workspace) SetQuotation(t *quotation.Table, sourceID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.table = t.Clone()
	w.sourceID = sourceID
}

// EditQuotation runs fn on the current table under the workspace lock and
// returns a copy of the result.
func (w *Workspace) EditQuotation(fn func(t *quotation.Table) error) (*quotation.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.table == nil {
		return nil, errNoQuotation
	}
	if err := fn(w.table); err != nil {
		return nil, err
	}
	return w.table.Clone(), nil
}

// Grid returns the open spreadsheet and the object path it saves to. The
// path is empty for a grid opened from the quotation table.
func (w *Workspace) Grid() (*grid.Grid, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grid, w.gridPath
}

func (w *Workspace) SetGrid(g *grid.Grid, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grid = g
	w.gridPath = path
}

// Pager returns the open PDF and the path it was opened from.
func (w *Workspace) Pager() (*grid.Pager, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pager, w.pagerRef
}

func (w *Workspace) SetPager(p *grid.Pager, ref string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pager = p
	w.pagerRef = ref
}

// WithPager runs fn on the open PDF under the workspace lock.
func (w *Workspace) WithPager(fn func(p *grid.Pager) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pager == nil {
		return errNoPDF
	}
	return fn(w.pager)
}
