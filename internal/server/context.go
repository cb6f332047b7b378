package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/msmeflow/quoteflow/internal/auth"
	"github.com/msmeflow/quoteflow/internal/backend"
	"github.com/msmeflow/quoteflow/internal/compose"
	"github.com/msmeflow/quoteflow/internal/config"
	"github.com/msmeflow/quoteflow/internal/google"
	"github.com/msmeflow/quoteflow/internal/identity"
	"github.com/msmeflow/quoteflow/internal/inbox"
	"github.com/msmeflow/quoteflow/internal/instrumentation"
	"github.com/msmeflow/quoteflow/internal/logging"
	"github.com/msmeflow/quoteflow/internal/quotation"
	"github.com/msmeflow/quoteflow/internal/records"
	"github.com/msmeflow/quoteflow/internal/records/postgres"
	"github.com/msmeflow/quoteflow/internal/session"
	"github.com/msmeflow/quoteflow/internal/storage"
	"github.com/msmeflow/quoteflow/internal/upload"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds what NewServerContext needs besides the configuration.
type Options struct {
	Config   config.Config
	Logger   *slog.Logger
	Provider *instrumentation.Provider

	// KV overrides the session store selected from Config.
	KV session.KV
	// Objects overrides the object store selected from Config.
	Objects storage.ObjectStore
	// Records overrides the record store selected from Config.
	Records records.Store
}

// ServerContext holds the services shared by the REST API, the CLI and the
// MCP server.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     config.Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	sessions  *session.Store
	refresher *session.Refresher
	gateway   *auth.Gateway
	backend   *backend.Client
	objects   storage.ObjectStore
	records   records.Store
	files     *upload.Service
	generator *quotation.Generator
	tokens    google.TokenProvider
	pdf       quotation.PDFOptions

	// checks are pinged by the detailed health endpoint.
	checks map[string]Pinger

	mu       sync.Mutex
	inbox    *inbox.Service
	mailbox  *inbox.Mailbox
	sheets   *quotation.SheetsExporter
	injector *compose.Injector
	closers  []func()
	shutdown bool
}

// NewServerContext wires every service from the configuration. Google API
// clients are created on first use because they need a signed-in session.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := &instrumentation.Metrics{}
	if opts.Provider != nil {
		metrics = opts.Provider.Metrics()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		audit:   instrumentation.NewAuditLogger(logger, instrumentation.DefaultConfig().Audit),
		checks:  make(map[string]Pinger),
	}

	if err := sc.init(shutdownCtx, opts); err != nil {
		_ = sc.Shutdown()
		return nil, err
	}
	return sc, nil
}

func (sc *ServerContext) init(ctx context.Context, opts Options) error {
	cfg := sc.cfg
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	kv := opts.KV
	if kv == nil {
		var err error
		kv, err = sc.openKV(cfg)
		if err != nil {
			return err
		}
	}
	sc.sessions = session.NewStore(kv)

	idp := identity.New(identity.Options{
		BaseURL:    cfg.IdentityURL,
		AnonKey:    cfg.IdentityAnonKey,
		HTTPClient: httpClient,
		Metrics:    sc.metrics,
	})
	sc.backend = backend.New(backend.Options{
		BaseURL:    cfg.BackendURL,
		HTTPClient: httpClient,
		Metrics:    sc.metrics,
	})
	sc.gateway = auth.NewGateway(auth.Config{
		Identity:    idp,
		Backend:     sc.backend,
		Store:       sc.sessions,
		CallbackURL: cfg.CallbackURL(),
		Logger:      sc.logger,
		Metrics:     sc.metrics,
		Audit:       sc.audit,
	})
	sc.refresher = session.NewRefresher(sc.sessions, sc.backend, cfg.RefreshInterval, sc.logger, sc.metrics)

	sc.objects = opts.Objects
	if sc.objects == nil {
		var err error
		sc.objects, err = openObjectStore(ctx, cfg.Storage, cfg.AppURL)
		if err != nil {
			return err
		}
	}

	sc.records = opts.Records
	if sc.records == nil {
		var err error
		sc.records, err = sc.openRecords(ctx, cfg.Database)
		if err != nil {
			return err
		}
	}

	sc.files = upload.NewService(upload.Options{
		Store:    sc.objects,
		Records:  sc.records,
		Ingestor: sc.backend,
		Logger:   sc.logger,
		Metrics:  sc.metrics,
		Audit:    sc.audit,
	})
	sc.generator = quotation.NewGenerator(sc.backend, sc.logger, sc.metrics)
	sc.tokens = google.NewSessionTokenProvider(sc.sessions)

	pdf, err := loadPDFOptions(cfg.PDF)
	if err != nil {
		return err
	}
	sc.pdf = pdf
	return nil
}

func (sc *ServerContext) openKV(cfg config.Config) (session.KV, error) {
	if cfg.Valkey.Addr != "" {
		kv, err := session.NewValkeyKV(session.ValkeyOptions{
			Addr:      cfg.Valkey.Addr,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		sc.closers = append(sc.closers, kv.Close)
		return kv, nil
	}
	kv, err := session.NewFileKV(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return kv, nil
}

func openObjectStore(ctx context.Context, cfg config.StorageConfig, appURL string) (storage.ObjectStore, error) {
	if cfg.Backend == config.StorageS3 {
		return storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	}
	// Local objects are served by the API under /objects.
	publicURL := cfg.PublicBaseURL
	if publicURL == "" {
		publicURL = strings.TrimRight(appURL, "/") + "/objects"
	}
	return storage.NewLocalStore(cfg.LocalDir, publicURL)
}

func (sc *ServerContext) openRecords(ctx context.Context, cfg config.DatabaseConfig) (records.Store, error) {
	if cfg.URL == "" {
		return records.NewMemoryStore(), nil
	}
	store, err := postgres.Open(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	sc.closers = append(sc.closers, store.Close)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	sc.checks["database"] = store
	return store, nil
}

func loadPDFOptions(cfg config.PDFConfig) (quotation.PDFOptions, error) {
	var opts quotation.PDFOptions
	for _, img := range []struct {
		path string
		dst  *[]byte
	}{
		{cfg.HeaderImage, &opts.HeaderImage},
		{cfg.FooterImage, &opts.FooterImage},
	} {
		if img.path == "" {
			continue
		}
		data, err := os.ReadFile(img.path)
		if err != nil {
			return opts, fmt.Errorf("failed to read letterhead image: %w", err)
		}
		*img.dst = data
	}
	return opts, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

func (sc *ServerContext) Config() config.Config { return sc.cfg }
func (sc *ServerContext) Logger() *slog.Logger { return sc.logger }
func (sc *ServerContext) Metrics() *instrumentation.Metrics { return sc.metrics }
func (sc *ServerContext) Sessions() *session.Store { return sc.sessions }
func (sc *ServerContext) Refresher() *session.Refresher { return sc.refresher }
func (sc *ServerContext) Auth() *auth.Gateway { return sc.gateway }
func (sc *ServerContext) Backend() *backend.Client { return sc.backend }
func (sc *ServerContext) Objects() storage.ObjectStore { return sc.objects }
func (sc *ServerContext) Files() *upload.Service { return sc.files }
func (sc *ServerContext) Generator() *quotation.Generator { return sc.generator }
func (sc *ServerContext) PDFOptions() quotation.PDFOptions { return sc.pdf }
func (sc *ServerContext) Audit() *instrumentation.AuditLogger { return sc.audit }
func (sc *ServerContext) Checks() map[string]Pinger { return sc.checks }

// Inbox returns the Gmail-backed inbox service, creating it on first use.
func (sc *ServerContext) Inbox() (*inbox.Service, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.inboxLocked()
}

func (sc *ServerContext) inboxLocked() (*inbox.Service, error) {
	if sc.inbox != nil {
		return sc.inbox, nil
	}
	client, err := inbox.NewClient(sc.ctx, inbox.ClientOptions{
		HTTPClient: google.NewHTTPClient(sc.ctx, sc.tokens),
		Endpoint:   sc.cfg.Gmail.Endpoint,
		Logger:     sc.logger,
		Metrics:    sc.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}
	sc.inbox = inbox.NewService(client, sc.logger, sc.audit)
	return sc.inbox, nil
}

// Mailbox returns the paged message list.
func (sc *ServerContext) Mailbox() (*inbox.Mailbox, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.mailbox != nil {
		return sc.mailbox, nil
	}
	svc, err := sc.inboxLocked()
	if err != nil {
		return nil, err
	}
	sc.mailbox = inbox.NewMailbox(svc.Client(), inbox.MailboxOptions{
		Query:    sc.cfg.Gmail.Query,
		PageSize: sc.cfg.Gmail.PageSize,
		Logger:   sc.logger,
		Metrics:  sc.metrics,
	})
	return sc.mailbox, nil
}

// Injector returns the reply-draft injector.
func (sc *ServerContext) Injector() (*compose.Injector, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.injector != nil {
		return sc.injector, nil
	}
	svc, err := sc.inboxLocked()
	if err != nil {
		return nil, err
	}
	sc.injector = compose.NewInjector(svc, sc.pdf, compose.DefaultWaitTimeout, sc.logger)
	return sc.injector, nil
}

// Sheets returns the Google Sheets exporter.
func (sc *ServerContext) Sheets() (*quotation.SheetsExporter, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.sheets != nil {
		return sc.sheets, nil
	}
	exporter, err := quotation.NewSheetsExporter(sc.ctx, quotation.SheetsOptions{
		HTTPClient: google.NewHTTPClient(sc.ctx, sc.tokens),
		Logger:     sc.logger,
		Metrics:    sc.metrics,
		Audit:      sc.audit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}
	sc.sheets = exporter
	return sc.sheets, nil
}

// CurrentUser returns the signed-in user and access token.
func (sc *ServerContext) CurrentUser(ctx context.Context) (session.Session, error) {
	sess, err := sc.sessions.Load(ctx)
	if err != nil {
		return session.Session{}, err
	}
	if sess.AccessToken == "" {
		return session.Session{}, session.ErrNoSession
	}
	return sess, nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.shutdown
}

// Shutdown cancels the server context and closes the stores.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	for i := len(sc.closers) - 1; i >= 0; i-- {
		sc.closers[i]()
	}
	sc.logger.Debug("server context shut down", logging.Operation("shutdown"))
	return nil
}
