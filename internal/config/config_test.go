package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// baseEnv sets the minimum env a release-mode Load needs.
func baseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	baseEnv(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	baseEnv(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath != "/api" {
		t.Fatalf("API_BASE_PATH default expected '/api', got %q", cfg.APIBasePath)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "app.db" || !cfg.DB.AutoMigrate {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.Payments.Currency != "usd" || cfg.Auth.ErrorPath != "/auth/auth-code-error" {
		t.Fatalf("payment/auth defaults unexpected: %+v %+v", cfg.Payments, cfg.Auth)
	}
	if cfg.Storage.Enabled() {
		t.Fatalf("storage should be disabled without a bucket")
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v2/") // -> "/api/v2"

	// Backends
	t.Setenv("DB_DRIVER", "PostgreSQL")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("DB_AUTO_MIGRATE", "off")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("SITE_URL", "https://app.example.com/")
	t.Setenv("AUTH_ERROR_PATH", "oops")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_1")
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("STORAGE_BUCKET", "avatars")
	t.Setenv("STORAGE_PUBLIC_URL", "https://cdn.example.com/avatars/")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("IDEMPOTENCY_TTL", "48h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	wantServer := ServerConfig{
		Port:              "8088",
		ReadTimeout:       2 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      3 * time.Second,
		IdleTimeout:       4 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		MaxHeaderBytes:    8192,
		GinMode:           "release",
	}
	if cfg.Server != wantServer {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Log != (LogConfig{Level: "warn", Pretty: true}) || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.URL == "" || cfg.DB.AutoMigrate {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if cfg.Auth.SupabaseURL != "https://proj.supabase.co" || cfg.Auth.SiteURL != "https://app.example.com" || cfg.Auth.ErrorPath != "/oops" {
		t.Fatalf("auth unexpected: %+v", cfg.Auth)
	}
	if cfg.Payments.SecretKey != "sk_test_123" || cfg.Payments.WebhookSecret != "whsec_1" || cfg.Payments.Currency != "eur" {
		t.Fatalf("payments unexpected: %+v", cfg.Payments)
	}
	if cfg.Cache.RedisURL == "" || cfg.Cache.TTL != 2*time.Minute {
		t.Fatalf("cache unexpected: %+v", cfg.Cache)
	}
	if !cfg.Storage.Enabled() || cfg.Storage.PublicURL != "https://cdn.example.com/avatars" || cfg.Storage.MaxUploadBytes != 1024 {
		t.Fatalf("storage unexpected: %+v", cfg.Storage)
	}
	if cfg.Rate != (RateConfig{RPS: 5, Burst: 10}) {
		t.Fatalf("rate limiting unexpected: %+v", cfg.Rate)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_TestModeSkipsAuthRequirement(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	if _, err := Load(); err != nil {
		t.Fatalf("test mode should not require auth settings: %v", err)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"non-numeric PORT", map[string]string{"PORT": "http"}, "PORT must be a number"},
		{"PORT out of range", map[string]string{"PORT": "70000"}, "PORT must be a number"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"non-positive shutdown", map[string]string{"SHUTDOWN_TIMEOUT": "0s"}, "SHUTDOWN_TIMEOUT"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}, "DB_DRIVER"},
		{"bad currency", map[string]string{"PAYMENT_CURRENCY": "dollars"}, "PAYMENT_CURRENCY"},
		{"cache ttl", map[string]string{"CACHE_TTL": "0s"}, "CACHE_TTL"},
		{"upload cap", map[string]string{"MAX_UPLOAD_BYTES": "0"}, "MAX_UPLOAD_BYTES"},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl non-positive", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			baseEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}

	t.Run("missing auth in release mode", func(t *testing.T) {
		if _, err := Load(); err == nil || !containsErr(err, "SUPABASE_URL") {
			t.Fatalf("expected auth validation error, got: %v", err)
		}
	})
}

func TestLookupHelpers(t *testing.T) {
	t.Setenv("CFG_BLANK", "   ")
	t.Setenv("CFG_STR", "  eur ")
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD", "forty")
	t.Setenv("CFG_DUR", "150ms")
	t.Setenv("CFG_FLOAT", "0.25")

	if got := getenv("CFG_BLANK", "usd"); got != "usd" {
		t.Fatalf("blank string = %q", got)
	}
	if got := getenv("CFG_STR", "usd"); got != "eur" {
		t.Fatalf("string = %q", got)
	}
	if getint("CFG_INT", 0) != 42 || getint("CFG_BAD", 7) != 7 || getint("CFG_UNSET", 9) != 9 {
		t.Fatal("getint fallback broken")
	}
	if getdur("CFG_DUR", time.Second) != 150*time.Millisecond || getdur("CFG_BAD", time.Minute) != time.Minute {
		t.Fatal("getdur fallback broken")
	}
	if getfloat("CFG_FLOAT", 1) != 0.25 || getfloat("CFG_BAD", 1.5) != 1.5 {
		t.Fatal("getfloat fallback broken")
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"1": true, "yes": true, "On": true, "0": false, "N": false, "off": false} {
		got, err := parseBool(in)
		if err != nil || got != want {
			t.Errorf("parseBool(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := parseBool("maybe"); err == nil {
		t.Fatal("want error for maybe")
	}

	t.Setenv("CFG_FLAG", " YES ")
	t.Setenv("CFG_JUNK", "maybe")
	if !getbool("CFG_FLAG", false) || !getbool("CFG_JUNK", true) || getbool("CFG_JUNK", false) {
		t.Fatal("getbool fallback broken")
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{"": "/", " / ": "/", "api": "/api", "/api/": "/api", "/v2//": "/v2"} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

// Ensure tests don't leak env to others.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "GIN_MODE", "SUPABASE_URL", "SUPABASE_JWT_SECRET", "DB_DRIVER"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
