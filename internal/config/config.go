// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the plan database, the status source,
// pacing defaults, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database

	"github.com/tbourn/go-send-pacer/internal/sysutil"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-send-pacer")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StatusConfig defines how account quota status is fetched and cached.
type StatusConfig struct {
	SourceURL    string        // STATUS_SOURCE_URL; empty means always use the default status
	FetchTimeout time.Duration // STATUS_FETCH_TIMEOUT
	CacheTTL     time.Duration // STATUS_CACHE_TTL
	SourceRPS    float64       // STATUS_SOURCE_RPS; 0 disables outbound pacing
	SourceBurst  int           // STATUS_SOURCE_BURST
}

// DBConfig defines the plan store.
type DBConfig struct {
	Path          string        // DB_PATH (SQLite file)
	MaxOpenConns  int           // DB_MAX_OPEN_CONNS
	BusyTimeout   time.Duration // DB_BUSY_TIMEOUT
	PurgeInterval time.Duration // IDEMPOTENCY_PURGE_INTERVAL; 0 disables the janitor
}

// PacingConfig holds defaults applied when a request omits them.
type PacingConfig struct {
	DefaultTimezone          string // DEFAULT_TIMEZONE (IANA)
	BusinessHoursStart       string // BUSINESS_HOURS_START (HH:MM)
	BusinessHoursEnd         string // BUSINESS_HOURS_END (HH:MM)
	ScheduleThresholdMinutes int    // SCHEDULE_THRESHOLD_MINUTES
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB         DBConfig
	PolicyFile string // optional YAML overlay for the pacing policy

	// Status source
	Status StatusConfig

	// Pacing defaults
	Pacing PacingConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Path:          getenv("DB_PATH", "app.db"),
			MaxOpenConns:  getint("DB_MAX_OPEN_CONNS", 10),
			BusyTimeout:   getdur("DB_BUSY_TIMEOUT", 5*time.Second),
			PurgeInterval: getdur("IDEMPOTENCY_PURGE_INTERVAL", time.Hour),
		},
		PolicyFile: getenv("POLICY_FILE", ""),

		// Status source
		Status: StatusConfig{
			SourceURL:    strings.TrimRight(strings.TrimSpace(getenv("STATUS_SOURCE_URL", "")), "/"),
			FetchTimeout: getdur("STATUS_FETCH_TIMEOUT", 5*time.Second),
			CacheTTL:     getdur("STATUS_CACHE_TTL", 60*time.Second),
			SourceRPS:    getfloat("STATUS_SOURCE_RPS", 20),
			SourceBurst:  getint("STATUS_SOURCE_BURST", 10),
		},

		// Pacing defaults
		Pacing: PacingConfig{
			DefaultTimezone:          getenv("DEFAULT_TIMEZONE", "UTC"),
			BusinessHoursStart:       getenv("BUSINESS_HOURS_START", "09:00"),
			BusinessHoursEnd:         getenv("BUSINESS_HOURS_END", "17:00"),
			ScheduleThresholdMinutes: getint("SCHEDULE_THRESHOLD_MINUTES", 60),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-send-pacer"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	return cfg, cfg.validate()
}

// validate reports every invalid setting, joined into one error.
func (cfg Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	check(strings.TrimSpace(cfg.DB.Path) != "", "DB_PATH must not be empty")
	check(cfg.DB.MaxOpenConns >= 1, "DB_MAX_OPEN_CONNS must be >= 1")
	check(cfg.DB.BusyTimeout >= 0, "DB_BUSY_TIMEOUT must be >= 0")
	check(cfg.DB.PurgeInterval >= 0, "IDEMPOTENCY_PURGE_INTERVAL must be >= 0")

	if cfg.Status.SourceURL != "" {
		u, err := url.Parse(cfg.Status.SourceURL)
		check(err == nil && u.Scheme != "" && u.Host != "", "STATUS_SOURCE_URL must be an absolute URL")
	}
	check(cfg.Status.FetchTimeout > 0 && cfg.Status.CacheTTL > 0, "STATUS_FETCH_TIMEOUT and STATUS_CACHE_TTL must be > 0")
	check(cfg.Status.SourceRPS >= 0, "STATUS_SOURCE_RPS must be >= 0")
	check(cfg.Status.SourceBurst >= 1, "STATUS_SOURCE_BURST must be >= 1")

	if _, err := time.LoadLocation(cfg.Pacing.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEZONE: %w", err))
	}
	start, errStart := time.Parse("15:04", cfg.Pacing.BusinessHoursStart)
	end, errEnd := time.Parse("15:04", cfg.Pacing.BusinessHoursEnd)
	check(errStart == nil && errEnd == nil && end.Hour() > start.Hour(),
		"BUSINESS_HOURS_START/END must be HH:MM with start hour before end hour")
	check(cfg.Pacing.ScheduleThresholdMinutes >= 0, "SCHEDULE_THRESHOLD_MINUTES must be >= 0")

	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// lookup returns parse(v) for a set, non-empty variable k, or def when the
// variable is unset, empty or unparsable.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return def
}

func getenv(k, def string) string {
	return lookup(k, def, func(v string) (string, error) { return v, nil })
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	return lookup(k, def, func(v string) (bool, error) {
		switch {
		case sysutil.IsTruthy(v):
			return true, nil
		case sysutil.IsFalsy(v):
			return false, nil
		}
		return false, errNotBool
	})
}

var errNotBool = errors.New("not a boolean")

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
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
