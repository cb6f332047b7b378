package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend names.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the runtime configuration of the quoteflow agent.
type Config struct {
	// Addr is the listen address of the local REST API.
	Addr string

	// AppURL is the externally visible base URL of the agent. The OAuth
	// callback is served at AppURL + "/auth/callback".
	AppURL string

	// IdentityURL is the base URL of the hosted identity service.
	IdentityURL string

	// IdentityAnonKey is sent as the apikey header on identity requests.
	IdentityAnonKey string

	// BackendURL is the base URL of the application backend.
	BackendURL string

	// RefreshInterval is the token refresh timer period.
	RefreshInterval time.Duration

	// HTTPTimeout bounds every outbound REST call.
	HTTPTimeout time.Duration

	// StateDir holds the file-backed session store and local objects.
	StateDir string

	LogFormat string
	LogLevel  string

	Valkey   ValkeyConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Gmail    GmailConfig
	PDF      PDFConfig
	Metrics  MetricsConfig
}

// ValkeyConfig selects the Valkey-backed session store when Addr is set.
type ValkeyConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// StorageConfig configures object storage for uploaded documents.
type StorageConfig struct {
	Backend string

	// LocalDir is the root directory of the local backend.
	LocalDir string

	// PublicBaseURL is prefixed to object keys to build public URLs.
	PublicBaseURL string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3PathStyle bool
}

// DatabaseConfig enables the Postgres upload record store when URL is set.
type DatabaseConfig struct {
	URL string
}

// GmailConfig configures the unified inbox.
type GmailConfig struct {
	PageSize int64
	Query    string

	// Endpoint overrides the Gmail API base URL.
	Endpoint string
}

// PDFConfig points at the letterhead images drawn on quotation PDFs.
// Either path may be empty.
type PDFConfig struct {
	HeaderImage string
	FooterImage string
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Load reads the optional .env file in the working directory and then
// builds a Config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	stateDir := getEnvOrDefault("QUOTEFLOW_STATE_DIR", filepath.Join(userCacheDir(), "quoteflow"))
	addr := getEnvOrDefault("QUOTEFLOW_ADDR", "127.0.0.1:8787")

	cfg := Config{
		Addr:            addr,
		AppURL:          getEnvOrDefault("QUOTEFLOW_APP_URL", "http://"+addr),
		IdentityURL:     getEnvOrDefault("IDENTITY_URL", os.Getenv("SUPABASE_URL")),
		IdentityAnonKey: getEnvOrDefault("IDENTITY_ANON_KEY", os.Getenv("SUPABASE_ANON_KEY")),
		BackendURL:      getEnvOrDefault("BACKEND_URL", "http://localhost:8000"),
		RefreshInterval: getEnvDurationOrDefault("QUOTEFLOW_REFRESH_INTERVAL", time.Hour),
		HTTPTimeout:     getEnvDurationOrDefault("QUOTEFLOW_HTTP_TIMEOUT", 30*time.Second),
		StateDir:        stateDir,
		LogFormat:       getEnvOrDefault("QUOTEFLOW_LOG_FORMAT", "text"),
		LogLevel:        getEnvOrDefault("QUOTEFLOW_LOG_LEVEL", "info"),
		Valkey: ValkeyConfig{
			Addr:      os.Getenv("QUOTEFLOW_VALKEY_ADDR"),
			Password:  os.Getenv("QUOTEFLOW_VALKEY_PASSWORD"),
			DB:        getEnvIntOrDefault("QUOTEFLOW_VALKEY_DB", 0),
			KeyPrefix: getEnvOrDefault("QUOTEFLOW_VALKEY_PREFIX", "quoteflow:"),
		},
		Storage: StorageConfig{
			Backend:       getEnvOrDefault("QUOTEFLOW_STORAGE", StorageLocal),
			LocalDir:      getEnvOrDefault("QUOTEFLOW_STORAGE_DIR", filepath.Join(stateDir, "objects")),
			PublicBaseURL: os.Getenv("QUOTEFLOW_STORAGE_PUBLIC_URL"),
			S3Endpoint:    os.Getenv("S3_ENDPOINT"),
			S3Region:      getEnvOrDefault("S3_REGION", "us-east-1"),
			S3AccessKey:   os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretKey:   os.Getenv("S3_SECRET_ACCESS_KEY"),
			S3PathStyle:   getEnvBoolOrDefault("S3_FORCE_PATH_STYLE", true),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("QUOTEFLOW_DATABASE_URL"),
		},
		Gmail: GmailConfig{
			PageSize: int64(getEnvIntOrDefault("QUOTEFLOW_GMAIL_PAGE_SIZE", 20)),
			Query:    getEnvOrDefault("QUOTEFLOW_GMAIL_QUERY", "in:inbox"),
			Endpoint: os.Getenv("QUOTEFLOW_GMAIL_ENDPOINT"),
		},
		PDF: PDFConfig{
			HeaderImage: os.Getenv("QUOTEFLOW_PDF_HEADER_IMAGE"),
			FooterImage: os.Getenv("QUOTEFLOW_PDF_FOOTER_IMAGE"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBoolOrDefault("METRICS_ENABLED", false),
			Addr:    getEnvOrDefault("METRICS_ADDR", ":9090"),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.Gmail.PageSize <= 0 || c.Gmail.PageSize > 500 {
		return fmt.Errorf("gmail page size must be between 1 and 500, got %d", c.Gmail.PageSize)
	}
	switch c.Storage.Backend {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3Endpoint == "" && c.Storage.S3Region == "" {
			return fmt.Errorf("s3 storage requires S3_ENDPOINT or S3_REGION")
		}
	default:
		return fmt.Errorf("invalid storage backend %q, must be one of: local, s3", c.Storage.Backend)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be text or json", c.LogFormat)
	}
	return nil
}

// CallbackURL is where the identity service redirects after a federated sign-in.
func (c Config) CallbackURL() string {
	return c.AppURL + "/auth/callback"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDurationOrDefault accepts Go duration strings ("90m") and plain
// milliseconds ("3600000").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	if runtime.GOOS == "windows" {
		return os.TempDir()
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}
