package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// TestFromLookup_Defaults tests that an empty environment yields development defaults.
func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("expected env=development, got %s", cfg.Env)
	}
	if cfg.APIBaseURL != DefaultDevAPIURL {
		t.Errorf("expected dev API URL, got %s", cfg.APIBaseURL)
	}
	if cfg.CSRFKey != nil || cfg.CredentialKey != nil {
		t.Error("expected nil keys when unset in development")
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Errorf("expected default rate limit 120, got %d", cfg.RateLimitPerMinute)
	}
	if cfg.SlowRequest != 200*time.Millisecond || cfg.SlowQuery != 50*time.Millisecond {
		t.Errorf("unexpected slow thresholds %v / %v", cfg.SlowRequest, cfg.SlowQuery)
	}
}

// TestResolveAPIBaseURL tests override precedence and environment detection.
func TestResolveAPIBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		host     string
		override string
		want     string
	}{
		{"override wins in dev", EnvDevelopment, "localhost", "https://staging.example/api/", "https://staging.example/api"},
		{"override wins in prod", EnvProduction, "worshipacademy.org", "http://custom", "http://custom"},
		{"local host is dev", EnvDevelopment, "localhost:8080", "", "http://dev/api"},
		{"loopback ip is dev", EnvDevelopment, "127.0.0.1", "", "http://dev/api"},
		{"ipv6 loopback is dev", EnvDevelopment, "[::1]:8080", "", "http://dev/api"},
		{"public host is prod", EnvDevelopment, "worshipacademy.org", "", "https://prod/api"},
		{"production env is prod", EnvProduction, "localhost", "", "https://prod/api"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveAPIBaseURL(tc.env, tc.host, tc.override, "https://prod/api", "http://dev/api/")
			if got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

// TestFromLookup_Location tests zone selection for civil dates.
func TestFromLookup_Location(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"default", nil, "UTC"},
		{"explicit", map[string]string{"MINISTRY_TIMEZONE": "America/Chicago"}, "America/Chicago"},
		{"explicit beats TZ", map[string]string{"MINISTRY_TIMEZONE": "Europe/London", "TZ": "Asia/Tokyo"}, "Europe/London"},
		{"TZ fallback", map[string]string{"TZ": "Africa/Lagos"}, "Africa/Lagos"},
		{"TZ colon form", map[string]string{"TZ": ":Pacific/Auckland"}, "Pacific/Auckland"},
		{"unloadable TZ", map[string]string{"TZ": "Nowhere/Special"}, "UTC"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := FromLookup(lookupFrom(tc.env))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Location == nil || cfg.Location.String() != tc.want {
				t.Errorf("Location = %v, want %s", cfg.Location, tc.want)
			}
		})
	}
}

// TestFromLookup_ProductionRequiresKeys tests that secrets are mandatory in production.
func TestFromLookup_ProductionRequiresKeys(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"MINISTRY_ENV": EnvProduction}))
	if err == nil || !strings.Contains(err.Error(), "MINISTRY_CSRF_KEY") {
		t.Fatalf("expected CSRF key error, got %v", err)
	}

	key := strings.Repeat("ab", 32)
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"MINISTRY_ENV":            EnvProduction,
		"MINISTRY_CSRF_KEY":       key,
		"MINISTRY_CREDENTIAL_KEY": key,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CSRFKey) != 32 || len(cfg.CredentialKey) != 32 {
		t.Error("expected 32-byte keys")
	}
	if cfg.APIBaseURL != DefaultProdAPIURL {
		t.Errorf("expected prod API URL, got %s", cfg.APIBaseURL)
	}
}

// TestFromLookup_InvalidValues tests rejection of malformed settings.
func TestFromLookup_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"MINISTRY_CSRF_KEY":              "short",
		"MINISTRY_API_TIMEOUT":           "soon",
		"MINISTRY_API_RPS":               "-1",
		"MINISTRY_RATE_LIMIT_PER_MINUTE": "0",
		"MINISTRY_LOG_LEVEL":             "chatty",
		"OTEL_SAMPLING_RATIO":            "2",
		"MINISTRY_SLOW_QUERY_MS":         "fast",
		"MINISTRY_TIMEZONE":              "Mars/Olympus_Mons",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			if _, err := FromLookup(lookupFrom(map[string]string{key: val})); err == nil {
				t.Errorf("expected error for %s=%s", key, val)
			}
		})
	}
}

// TestLoad_DotenvDoesNotOverride tests that .env values fill gaps but never replace real env vars.
func TestLoad_DotenvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "MINISTRY_ADDR=:9999\nMINISTRY_CONTACT_TO=file@example.org\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MINISTRY_ADDR", ":7000")
	t.Setenv("MINISTRY_CONTACT_TO", "")
	os.Unsetenv("MINISTRY_CONTACT_TO")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("expected real env to win, got %s", cfg.Addr)
	}
	if cfg.ContactTo != "file@example.org" {
		t.Errorf("expected .env to fill gap, got %s", cfg.ContactTo)
	}
}

// TestLoad_MissingDotenv tests that a missing .env file is not an error.
func TestLoad_MissingDotenv(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
