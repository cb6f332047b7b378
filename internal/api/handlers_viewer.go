package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/grid"
	"github.com/msmeflow/quoteflow/internal/quotation"
)

// SourceQuotation opens the viewer on the current quotation instead of a
// stored file.
const SourceQuotation = "quotation"

var (
	errNoGrid = &APIError{
		Status:  http.StatusNotFound,
		Code:    "NO_SPREADSHEET",
		Message: "No spreadsheet is open",
	}
	errNoPDF = &APIError{
		Status:  http.StatusNotFound,
		Code:    "NO_PDF",
		Message: "No PDF is open",
	}
)

type openRequest struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

type cellRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type inputRequest struct {
	Value string `json:"value"`
}

type keyRequest struct {
	Key grid.Key `json:"key"`
}

type resizeRequest struct {
	Col   int `json:"col"`
	Delta int `json:"delta"`
}

type saveRequest struct {
	Path string `json:"path"`
}

type gridResponse struct {
	Path       string       `json:"path,omitempty"`
	Values     [][]string   `json:"values"`
	Widths     []int        `json:"widths"`
	Editing    *grid.Cursor `json:"editing,omitempty"`
	HasChanges bool         `json:"hasChanges"`
}

type pageResponse struct {
	Page     int    `json:"page"`
	NumPages int    `json:"numPages"`
	Text     string `json:"text"`
}

func gridState(g *grid.Grid, path string) gridResponse {
	resp := gridResponse{
		Path:       path,
		Values:     g.Values(),
		Widths:     g.Widths(),
		HasChanges: g.HasChanges(),
	}
	if cur, ok := g.Editing(); ok {
		resp.Editing = &cur
	}
	return resp
}

// openBytes loads the bytes behind an open request: a stored file of the
// signed-in user, or the current quotation rendered by render.
func (s *Server) openBytes(c echo.Context, req openRequest, render func(*quotation.Table) ([]byte, error)) ([]byte, error) {
	if req.Source == SourceQuotation {
		t, _, err := s.currentTable()
		if err != nil {
			return nil, err
		}
		return render(t)
	}
	if req.Path == "" {
		return nil, NewValidationError("path")
	}
	sess, err := s.currentSession(c)
	if err != nil {
		return nil, err
	}
	data, err := s.deps.Files.Open(c.Request().Context(), sess.User.ID, req.Path)
	if err != nil {
		return nil, fromError("file not found: "+req.Path, err)
	}
	return data, nil
}

func (s *Server) handleOpenGrid(c echo.Context) error {
	var req openRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	var g *grid.Grid
	if req.Source == SourceQuotation {
		t, _, err := s.currentTable()
		if err != nil {
			return err
		}
		g = grid.New(t.Matrix())
		req.Path = ""
	} else {
		data, err := s.openBytes(c, req, nil)
		if err != nil {
			return err
		}
		if g, err = grid.LoadXLSX(data); err != nil {
			return NewBadRequestError("failed to read spreadsheet", err)
		}
	}
	s.workspace.SetGrid(g, req.Path)
	return c.JSON(http.StatusOK, gridState(g, req.Path))
}

func (s *Server) openGrid() (*grid.Grid, string, error) {
	g, path := s.workspace.Grid()
	if g == nil {
		return nil, "", errNoGrid
	}
	return g, path, nil
}

func (s *Server) handleGridState(c echo.Context) error {
	g, path, err := s.openGrid()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, gridState(g, path))
}

func (s *Server) handleGridEdit(c echo.Context) error {
	g, path, err := s.openGrid()
	if err != nil {
		return err
	}
	var req cellRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := g.Edit(req.Row, req.Col); err != nil {
		return fromError("cannot edit cell", err)
	}
	return c.JSON(http.StatusOK, gridState(g, path))
}

func (s *Server) handleGridInput(c echo.Context) error {
	g, path, err := s.openGrid()
	if err != nil {
		return err
	}
	var req inputRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := g.Input(req.Value); err != nil {
		return fromError("cannot change cell", err)
	}
	return c.JSON(http.StatusOK, gridState(g, path))
}

func (s *Server) handleGridKey(c echo.Context) error {
	g, path, err := s.openGrid()
	if err != nil {
		return err
	}
	var req keyRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if _, _, err := g.Press(req.Key); err != nil {
		return NewBadRequestError("cannot handle key", err)
	}
	return c.JSON(http.StatusOK, gridState(g, path))
}

func (s *Server) handleGridResize(c echo.Context) error {
	g, path, err := s.openGrid()
	if err != nil {
		return err
	}
	var req resizeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if _, err := g.ResizeColumn(req.Col, req.Delta); err != nil {
		return fromError("cannot resize column", err)
	}
	return c.JSON(http.StatusOK, gridState(g, path))
}

// handleGridSave overwrites the file the grid was opened from. A grid
// opened from the quotation needs an explicit path.
func (s *Server) handleGridSave(c echo.Context) error {
	sess, err := s.currentSession(c)
	if err != nil {
		return err
	}
	g, path, err := s.openGrid()
	if err != nil {
		return err
	}
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Path != "" {
		path = req.Path
	}
	if path == "" {
		return NewValidationError("path")
	}

	file, err := g.Save(c.Request().Context(), s.deps.Files, sess.User.ID, path)
	if err != nil {
		return fromError("failed to save spreadsheet", err)
	}
	s.workspace.SetGrid(g, path)
	return c.JSON(http.StatusOK, file)
}

func (s *Server) handleOpenPDF(c echo.Context) error {
	var req openRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	data, err := s.openBytes(c, req, func(t *quotation.Table) ([]byte, error) {
		return quotation.RenderPDF(t, s.deps.PDF)
	})
	if err != nil {
		return err
	}
	p, err := grid.NewPager(data)
	if err != nil {
		return NewBadRequestError("failed to read PDF", err)
	}

	ref := req.Path
	if req.Source == SourceQuotation {
		ref = SourceQuotation
	}
	s.workspace.SetPager(p, ref)
	return s.renderPage(c, func(*grid.Pager) {})
}

func (s *Server) handlePDFPage(c echo.Context) error {
	return s.renderPage(c, func(*grid.Pager) {})
}

// handlePDFGoto accepts page=n, or action=next / action=prev.
func (s *Server) handlePDFGoto(c echo.Context) error {
	action := c.QueryParam("action")
	var page int
	if action == "" {
		n, err := strconv.Atoi(c.QueryParam("page"))
		if err != nil {
			return NewBadRequestError("invalid page", err)
		}
		page = n
	}
	return s.renderPage(c, func(p *grid.Pager) {
		switch action {
		case "next":
			p.Next()
		case "prev":
			p.Prev()
		default:
			p.Goto(page)
		}
	})
}

func (s *Server) renderPage(c echo.Context, move func(*grid.Pager)) error {
	var resp pageResponse
	err := s.workspace.WithPager(func(p *grid.Pager) error {
		move(p)
		text, err := p.Text()
		if err != nil {
			return NewInternalError("failed to read page", err)
		}
		resp = pageResponse{Page: p.Page(), NumPages: p.NumPages(), Text: text}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
