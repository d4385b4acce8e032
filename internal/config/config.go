package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Environment names recognised by MINISTRY_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Default external API locations, selected by environment detection.
const (
	DefaultDevAPIURL  = "http://localhost:5000/api"
	DefaultProdAPIURL = "https://api.worshipacademy.org/api"
)

// Config holds every runtime setting for the server.
type Config struct {
	Env        string
	Addr       string
	DBPath     string
	PublicHost string
	LogLevel   slog.Level

	// External scheduling/auth API
	APIBaseURL string
	APITimeout time.Duration
	APIRPS     float64

	// Secrets (hex-encoded 32-byte keys; nil means "generate per process" in dev)
	CSRFKey       []byte
	CredentialKey []byte

	// Email delivery
	ResendKey string
	EmailFrom string
	ReplyTo   string
	ContactTo string

	// Rate limiting
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RateLimitPerMinute int

	// Gallery bucket (S3-compatible)
	GalleryBucket    string
	GalleryPrefix    string
	GalleryRegion    string
	GalleryEndpoint  string
	GalleryPublicURL string
	AWSAccessKey     string
	AWSSecretKey     string

	// Tracing
	OTLPEndpoint   string
	OTelSampleRate float64

	// Slow-operation log thresholds
	SlowRequest time.Duration
	SlowQuery   time.Duration

	// Location is the zone civil dates (schedule picker, event listings) are computed in.
	Location *time.Location
}

// IsProduction reports whether the server runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment are never overridden by the file.
// PRE: none
// POST: Returns a fully populated Config or an error describing the first invalid value
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from a lookup function (os.LookupEnv in production, a map in tests).
// PRE: lookup is non-nil
// POST: Returns Config with defaults applied for unset keys
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := Config{
		Env:        get("MINISTRY_ENV", EnvDevelopment),
		Addr:       get("MINISTRY_ADDR", ":8080"),
		DBPath:     get("MINISTRY_DB_PATH", "ministry.db"),
		PublicHost: get("MINISTRY_PUBLIC_HOST", "localhost"),

		ResendKey: get("MINISTRY_RESEND_KEY", ""),
		EmailFrom: get("MINISTRY_RESEND_FROM", "Worship Academy <noreply@worshipacademy.org>"),
		ReplyTo:   get("MINISTRY_REPLY_TO", "hello@worshipacademy.org"),
		ContactTo: get("MINISTRY_CONTACT_TO", "hello@worshipacademy.org"),

		RedisAddr:     get("MINISTRY_REDIS_ADDR", ""),
		RedisPassword: get("MINISTRY_REDIS_PASSWORD", ""),

		GalleryBucket:    get("MINISTRY_GALLERY_BUCKET", ""),
		GalleryPrefix:    get("MINISTRY_GALLERY_PREFIX", "gallery/"),
		GalleryRegion:    get("MINISTRY_GALLERY_REGION", "us-east-1"),
		GalleryEndpoint:  get("MINISTRY_GALLERY_ENDPOINT", ""),
		GalleryPublicURL: get("MINISTRY_GALLERY_PUBLIC_URL", ""),
		AWSAccessKey:     get("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     get("AWS_SECRET_ACCESS_KEY", ""),

		OTLPEndpoint: get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	cfg.APIBaseURL = ResolveAPIBaseURL(
		cfg.Env,
		cfg.PublicHost,
		get("MINISTRY_API_URL", ""),
		get("MINISTRY_PROD_API_URL", DefaultProdAPIURL),
		get("MINISTRY_DEV_API_URL", DefaultDevAPIURL),
	)

	var err error
	if cfg.LogLevel, err = parseLevel(get("MINISTRY_LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}
	if cfg.APITimeout, err = time.ParseDuration(get("MINISTRY_API_TIMEOUT", "10s")); err != nil {
		return Config{}, fmt.Errorf("MINISTRY_API_TIMEOUT: %w", err)
	}
	if cfg.SlowRequest, err = parseMillis("MINISTRY_SLOW_REQUEST_MS", get("MINISTRY_SLOW_REQUEST_MS", "200")); err != nil {
		return Config{}, err
	}
	if cfg.SlowQuery, err = parseMillis("MINISTRY_SLOW_QUERY_MS", get("MINISTRY_SLOW_QUERY_MS", "50")); err != nil {
		return Config{}, err
	}
	if cfg.APIRPS, err = strconv.ParseFloat(get("MINISTRY_API_RPS", "20"), 64); err != nil || cfg.APIRPS <= 0 {
		return Config{}, errors.New("MINISTRY_API_RPS must be a positive number")
	}
	if cfg.RedisDB, err = strconv.Atoi(get("MINISTRY_REDIS_DB", "0")); err != nil || cfg.RedisDB < 0 {
		return Config{}, errors.New("MINISTRY_REDIS_DB must be a non-negative integer")
	}
	if cfg.RateLimitPerMinute, err = strconv.Atoi(get("MINISTRY_RATE_LIMIT_PER_MINUTE", "120")); err != nil || cfg.RateLimitPerMinute <= 0 {
		return Config{}, errors.New("MINISTRY_RATE_LIMIT_PER_MINUTE must be a positive integer")
	}
	if cfg.Location, err = parseLocation(get("MINISTRY_TIMEZONE", ""), get("TZ", "")); err != nil {
		return Config{}, err
	}
	if cfg.OTelSampleRate, err = strconv.ParseFloat(get("OTEL_SAMPLING_RATIO", "1"), 64); err != nil || cfg.OTelSampleRate < 0 || cfg.OTelSampleRate > 1 {
		return Config{}, errors.New("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}

	if cfg.CSRFKey, err = parseKey("MINISTRY_CSRF_KEY", get("MINISTRY_CSRF_KEY", "")); err != nil {
		return Config{}, err
	}
	if cfg.CredentialKey, err = parseKey("MINISTRY_CREDENTIAL_KEY", get("MINISTRY_CREDENTIAL_KEY", "")); err != nil {
		return Config{}, err
	}
	if cfg.IsProduction() {
		if cfg.CSRFKey == nil {
			return Config{}, errors.New("MINISTRY_CSRF_KEY is required in production")
		}
		if cfg.CredentialKey == nil {
			return Config{}, errors.New("MINISTRY_CREDENTIAL_KEY is required in production")
		}
	}

	return cfg, nil
}

// ResolveAPIBaseURL picks the external API base URL.
// An explicit override always wins. Otherwise production is detected from the
// environment name or a public host that is not a loopback/local name.
// PRE: prodURL and devURL are non-empty
// POST: Returns a URL without a trailing slash
func ResolveAPIBaseURL(env, publicHost, override, prodURL, devURL string) string {
	chosen := devURL
	switch {
	case override != "":
		chosen = override
	case env == EnvProduction || !IsLocalHost(publicHost):
		chosen = prodURL
	}
	return strings.TrimRight(chosen, "/")
}

// IsLocalHost reports whether host (optionally with a port) names the local machine.
func IsLocalHost(host string) bool {
	h := strings.TrimSpace(host)
	if h == "" {
		return true
	}
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.Trim(strings.ToLower(h), "[]")
	if h == "localhost" || strings.HasSuffix(h, ".localhost") || strings.HasSuffix(h, ".local") {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}

func parseKey(name, raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%s must be 64 hex characters (32 bytes)", name)
	}
	return key, nil
}

func parseMillis(name, raw string) (time.Duration, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number of milliseconds", name)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("MINISTRY_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// parseLocation resolves the site zone. MINISTRY_TIMEZONE must name a valid
// zone; the process TZ is only a fallback and, like the time package, an
// unloadable TZ means UTC.
func parseLocation(zone, tz string) (*time.Location, error) {
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("MINISTRY_TIMEZONE %q: %w", zone, err)
		}
		return loc, nil
	}
	if tz = strings.TrimPrefix(tz, ":"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc, nil
		}
	}
	return time.UTC, nil
}
