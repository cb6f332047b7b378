package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/msmeflow/quoteflow/internal/compose"
	"github.com/msmeflow/quoteflow/internal/inbox"
	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/upload"
)

// Authenticator is implemented by *auth.Gateway.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (session.Session, error)
	GoogleSignInURL() string
	DirectGoogleSignInURL() string
	SignOut(ctx context.Context) error
	Current(ctx context.Context) (session.Session, error)
	CallbackHandler(c echo.Context) error
}

// RefreshStatus is implemented by *session.Refresher.
type RefreshStatus interface {
	Status() session.Status
}

// FileService is implemented by *upload.Service.
type FileService interface {
	Upload(ctx context.Context, req upload.Request) (upload.Result, error)
	List(ctx context.Context, userID string) ([]upload.UploadedFile, error)
	Open(ctx context.Context, userID, path string) ([]byte, error)
	Update(ctx context.Context, userID, path string, data []byte) (upload.UploadedFile, error)
	Delete(ctx context.Context, userID, path string) error
}

// Generator is implemented by *quotation.Generator.
type Generator interface {
	Generate(ctx context.Context, accessToken, emailContent string) (*quotation.Generation, error)
}

// SheetExporter is implemented by *quotation.SheetsExporter.
type SheetExporter interface {
	Export(ctx context.Context, t *quotation.Table, spreadsheetID, userID string) (quotation.SheetExport, error)
}

// Inbox is implemented by *inbox.Service.
type Inbox interface {
	Open(ctx context.Context, id string) (*inbox.Message, error)
	Attachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
	Send(ctx context.Context, userID string, d inbox.Draft) (string, error)
	Reply(ctx context.Context, userID, messageID string, d inbox.Draft) (string, error)
}

// Mailbox is implemented by *inbox.Mailbox.
type Mailbox interface {
	Load(ctx context.Context) (inbox.Snapshot, error)
	LoadMore(ctx context.Context) (inbox.Snapshot, error)
	Snapshot() inbox.Snapshot
	MarkRead(id string)
}

// Injector is implemented by *compose.Injector.
type Injector interface {
	Inject(ctx context.Context, req compose.Request) compose.Outcome
}

// Dependencies holds all handler dependencies. The Google-backed services
// are resolved per request because they need a signed-in session.
type Dependencies struct {
	Auth      Authenticator
	Refresher RefreshStatus
	Files     FileService
	Generator Generator
	PDF       quotation.PDFOptions

	Sheets   func() (SheetExporter, error)
	Inbox    func() (Inbox, error)
	Mailbox  func() (Mailbox, error)
	Injector func() (Injector, error)

	// ObjectsDir is served under /objects when objects are stored locally.
	ObjectsDir string

	// Health maps health endpoint paths to their handlers.
	Health map[string]http.Handler

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server owns the echo instance and the in-memory workspace.
type Server struct {
	deps      Dependencies
	logger    *slog.Logger
	workspace *Workspace
	echo      *echo.Echo
}

// NewServer creates the echo instance with every route registered.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps:      deps,
		logger:    logging.WithComponent(deps.Logger, "api"),
		workspace: NewWorkspace(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(deps.Logger)
	e.Use(s.recoverer, s.requestID, s.instrument)
	s.echo = e

	s.registerRoutes(e)
	return s
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Workspace returns the in-memory editing state.
func (s *Server) Workspace() *Workspace {
	return s.workspace
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) registerRoutes(e *echo.Echo) {
	for path, h := range s.deps.Health {
		e.GET(path, echo.WrapHandler(h))
	}
	if s.deps.ObjectsDir != "" {
		e.Static("/objects", s.deps.ObjectsDir)
	}

	e.GET("/auth/callback", s.deps.Auth.CallbackHandler)

	authGroup := e.Group("/api/auth")
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", s.handleLogout)
	authGroup.GET("/google", s.handleGoogleSignIn)
	authGroup.GET("/status", s.handleAuthStatus)

	files := e.Group("/api/files")
	files.GET("", s.handleListFiles)
	files.POST("", s.handleUploadFile)
	files.DELETE("", s.handleDeleteFile)
	files.GET("/content", s.handleOpenFile)
	files.PUT("/content", s.handleUpdateFile)

	quotes := e.Group("/api/quotations")
	quotes.POST("", s.handleGenerateQuotation)
	quotes.GET("/current", s.handleCurrentQuotation)
	quotes.PUT("/current", s.handleReplaceQuotation)
	quotes.PUT("/current/cells", s.handleSetQuotationCell)
	quotes.POST("/current/rows", s.handleAddQuotationRow)
	quotes.DELETE("/current/rows/:index", s.handleDeleteQuotationRow)
	quotes.POST("/current/fill-rates", s.handleFillRates)
	quotes.GET("/current/pdf", s.handleQuotationPDF)
	quotes.GET("/current/xlsx", s.handleQuotationXLSX)
	quotes.POST("/current/sheets", s.handleQuotationSheets)
	quotes.GET("/current/overlay", s.handleQuotationOverlay)
	quotes.POST("/current/inject", s.handleInjectQuotation)

	viewer := e.Group("/api/viewer")
	viewer.POST("/open", s.handleOpenGrid)
	viewer.GET("", s.handleGridState)
	viewer.POST("/edit", s.handleGridEdit)
	viewer.POST("/input", s.handleGridInput)
	viewer.POST("/key", s.handleGridKey)
	viewer.POST("/resize", s.handleGridResize)
	viewer.POST("/save", s.handleGridSave)

	pdf := e.Group("/api/pdf")
	pdf.POST("/open", s.handleOpenPDF)
	pdf.GET("", s.handlePDFPage)
	pdf.POST("/page", s.handlePDFGoto)

	mail := e.Group("/api/inbox")
	mail.GET("", s.handleMailboxSnapshot)
	mail.POST("/load", s.handleMailboxLoad)
	mail.POST("/more", s.handleMailboxMore)
	mail.GET("/messages/:id", s.handleOpenMessage)
	mail.GET("/messages/:id/attachments/:attachmentId", s.handleAttachment)
	mail.POST("/messages/:id/reply", s.handleReply)
	mail.POST("/send", s.handleSend)

	e.GET("/api/whatsapp", s.handleWhatsApp)
}

func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

// instrument records the request metric and logs each request at debug.
func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		duration := time.Since(start)
		s.deps.Metrics.RecordHTTPRequest(c.Request().Context(), c.Request().Method, c.Path(), status, duration)
		s.logger.Debug("request",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
		return nil
	}
}

func (s *Server) recoverer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("handler panicked", slog.Any("panic", r), slog.String("path", c.Path()))
				err = NewInternalError("An unexpected error occurred", nil)
			}
		}()
		return next(c)
	}
}

// currentSession returns the signed-in session or an unauthorized error.
func (s *Server) currentSession(c echo.Context) (session.Session, error) {
	sess, err := s.deps.Auth.Current(c.Request().Context())
	if err != nil || sess.AccessToken == "" {
		return session.Session{}, NewUnauthorizedError("Please sign in first")
	}
	return sess, nil
}
