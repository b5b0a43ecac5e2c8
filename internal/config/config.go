// Package config reads the service configuration from the environment. Every
// variable has a default; Load validates the combined result once at start.
package config

import (
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-realty-backend/internal/utils"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "realty-marketplace")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the SQL backend.
type DBConfig struct {
	Driver      string // postgres|sqlite
	URL         string // DATABASE_URL, required for postgres
	Path        string // DB_PATH, sqlite file
	AutoMigrate bool   // DB_AUTO_MIGRATE
}

// AuthConfig holds the Supabase project settings used to verify bearer
// tokens and to complete the OAuth/magic-link code exchange.
type AuthConfig struct {
	SupabaseURL        string
	AnonKey            string
	JWTSecret          string
	SiteURL            string
	ErrorPath          string
	CodeVerifierCookie string
}

// PaymentsConfig holds payment processor credentials.
type PaymentsConfig struct {
	SecretKey     string // STRIPE_SECRET_KEY
	WebhookSecret string // STRIPE_WEBHOOK_SECRET, webhook route disabled when empty
	Currency      string // PAYMENT_CURRENCY
}

// CacheConfig configures the optional Redis cache.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// StorageConfig configures the optional S3-compatible object store.
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	MaxUploadBytes  int64
}

// Enabled reports whether uploads are configured.
func (s StorageConfig) Enabled() bool { return strings.TrimSpace(s.Bucket) != "" }

// ServerConfig holds the http.Server settings.
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration // graceful shutdown deadline
	MaxHeaderBytes    int
	GinMode           string // debug|release|test
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string // debug|info|warn|error|fatal|panic
	Pretty bool   // console writer instead of JSON
}

// RateConfig sizes the per-caller token buckets.
type RateConfig struct {
	RPS   float64
	Burst int
}

// Config is the full service configuration.
type Config struct {
	Server ServerConfig
	Log    LogConfig

	SwaggerEnabled bool
	APIBasePath    string

	DB       DBConfig
	Auth     AuthConfig
	Payments PaymentsConfig
	Cache    CacheConfig
	Storage  StorageConfig

	Rate     RateConfig
	CORS     CORSConfig
	Security SecurityConfig

	// Retention for request idempotency keys and processed webhook events.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for main packages: it panics instead of returning an error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and normalization, then
// validates. The returned Config is usable for logging even on error.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:              getenv("PORT", "8080"),
			ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
			ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
			WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
			IdleTimeout:       getdur("IDLE_TIMEOUT", time.Minute),
			ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
			GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Pretty: getbool("LOG_PRETTY", false),
		},
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		DB: DBConfig{
			Driver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			URL:         getenv("DATABASE_URL", ""),
			Path:        getenv("DB_PATH", "app.db"),
			AutoMigrate: getbool("DB_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			SupabaseURL:        strings.TrimRight(getenv("SUPABASE_URL", ""), "/"),
			AnonKey:            getenv("SUPABASE_ANON_KEY", ""),
			JWTSecret:          getenv("SUPABASE_JWT_SECRET", ""),
			SiteURL:            strings.TrimRight(getenv("SITE_URL", ""), "/"),
			ErrorPath:          normalizeBasePath(getenv("AUTH_ERROR_PATH", "/auth/auth-code-error")),
			CodeVerifierCookie: getenv("AUTH_CODE_VERIFIER_COOKIE", "sb-code-verifier"),
		},
		Payments: PaymentsConfig{
			SecretKey:     getenv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getenv("PAYMENT_CURRENCY", "usd")),
		},
		Cache: CacheConfig{
			RedisURL: getenv("REDIS_URL", ""),
			TTL:      getdur("CACHE_TTL", time.Minute),
		},
		Storage: StorageConfig{
			Endpoint:        getenv("STORAGE_ENDPOINT", ""),
			Region:          getenv("STORAGE_REGION", "us-east-1"),
			Bucket:          getenv("STORAGE_BUCKET", ""),
			AccessKeyID:     getenv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getenv("STORAGE_SECRET_ACCESS_KEY", ""),
			PublicURL:       strings.TrimRight(getenv("STORAGE_PUBLIC_URL", ""), "/"),
			MaxUploadBytes:  int64(getint("MAX_UPLOAD_BYTES", 5<<20)),
		},

		Rate: RateConfig{
			RPS:   getfloat("RATE_RPS", 5),
			Burst: getint("RATE_BURST", 10),
		},
		CORS: CORSConfig{AllowedOrigins: utils.SplitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 72*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "realty-marketplace"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		c.Server.GinMode = "release"
	}
	if c.DB.Driver == "postgresql" {
		c.DB.Driver = "postgres"
	}
}

// validate returns the first failed rule.
func (c Config) validate() error {
	s := c.Server
	port, err := strconv.Atoi(s.Port)
	rules := []struct {
		bad bool
		msg string
	}{
		{!slices.Contains(logLevels, c.Log.Level), "LOG_LEVEL must be one of: " + strings.Join(logLevels, ", ")},
		{err != nil || port < 1 || port > 65535, "PORT must be a number in 1..65535"},
		{s.ReadTimeout <= 0 || s.ReadHeaderTimeout <= 0 || s.WriteTimeout <= 0 || s.IdleTimeout <= 0, "timeouts must be positive durations"},
		{s.ShutdownTimeout <= 0, "SHUTDOWN_TIMEOUT must be > 0"},
		{s.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{c.DB.Driver != "postgres" && c.DB.Driver != "sqlite", "DB_DRIVER must be one of: postgres, sqlite"},
		{c.DB.Driver == "postgres" && c.DB.URL == "", "DATABASE_URL is required when DB_DRIVER=postgres"},
		{c.Auth.SupabaseURL == "" && c.Auth.JWTSecret == "" && s.GinMode != "test", "SUPABASE_URL or SUPABASE_JWT_SECRET must be set"},
		{len(c.Payments.Currency) != 3, "PAYMENT_CURRENCY must be a 3-letter ISO code"},
		{c.Cache.TTL <= 0, "CACHE_TTL must be > 0"},
		{c.Storage.MaxUploadBytes <= 0, "MAX_UPLOAD_BYTES must be > 0"},
		{c.Rate.RPS < 0, "RATE_RPS must be >= 0"},
		{c.Rate.Burst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	for _, r := range rules {
		if r.bad {
			return errors.New(r.msg)
		}
	}
	return nil
}

var logLevels = []string{"debug", "info", "warn", "error", "fatal", "panic"}

// lookup parses env var k, keeping def when the variable is unset, blank or
// does not parse. A typo in a tuning knob should not stop the server; Load
// validates the resulting values instead.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return lookup(k, def, func(s string) (string, error) { return s, nil })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getbool(k string, def bool) bool { return lookup(k, def, parseBool) }

var errNotBool = errors.New("not a boolean")

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, errNotBool
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
