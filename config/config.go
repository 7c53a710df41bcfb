package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// DefaultTargetURL is the RFQ listing page.
const DefaultTargetURL = "https://i.alibaba.com/rfq-page"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// DriverPath is the browser driver executable. Defaults to
	// chromedriver (chromedriver.exe on Windows) next to the binary.
	DriverPath string

	// CDPURL attaches to an already running browser instead of launching
	// DriverPath. Closing a run then only disconnects.
	CDPURL string

	// Headless controls whether a launched browser runs headless.
	// The RFQ page needs a logged-in session, so the default is a
	// visible window.
	Headless bool // default: false

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// UserDataDir keeps the browser profile (and its login) across runs.
	UserDataDir string

	// Proxy is the proxy URL for the launched browser.
	Proxy string

	// Stealth injects anti-automation-detection JS before navigation.
	Stealth bool // default: true

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers fails requests to known analytics and ad hosts.
	BlockTrackers bool // default: true
}

// ScraperConfig controls what a run scrapes and how long it waits.
type ScraperConfig struct {
	TargetURL    string // default: DefaultTargetURL
	CardSelector string // default: "div.brh-rfq-item"

	// CardLimit caps the number of cards extracted per run. 0 means no cap.
	CardLimit int // default: 10

	InitialWait  time.Duration // default: 5s
	ScrollRounds int           // default: 5
	ScrollStep   int           // pixels; 0 scrolls to the bottom. default: 1000
	ScrollWait   time.Duration // default: 1.5s
	FinalWait    time.Duration // default: 3s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 30s

	// RunTimeout bounds a whole run.
	RunTimeout time.Duration // default: 5m
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	// Dir is the artifact directory, created at startup if absent.
	Dir string // default: "<exe dir>/scraped_data"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// WebhookConfig controls run-completion notifications.
type WebhookConfig struct {
	// URL receives a POST for every finished run. Empty disables webhooks.
	URL string

	// Secret signs the body with HMAC-SHA256 when set.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	base := InstallDir()
	return &Config{
		Server: ServerConfig{
			Host: envOr("RFQSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("RFQSCOUT_PORT", 8080),
			Mode: envOr("RFQSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			DriverPath:     envOr("RFQSCOUT_DRIVER_PATH", filepath.Join(base, DriverName(runtime.GOOS))),
			CDPURL:         os.Getenv("RFQSCOUT_CDP_URL"),
			Headless:       envBoolOr("RFQSCOUT_HEADLESS", false),
			NoSandbox:      envBoolOr("RFQSCOUT_NO_SANDBOX", false),
			UserDataDir:    os.Getenv("RFQSCOUT_USER_DATA_DIR"),
			Proxy:          os.Getenv("RFQSCOUT_PROXY"),
			Stealth:        envBoolOr("RFQSCOUT_STEALTH", true),
			AcceptLanguage: envOr("RFQSCOUT_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			BlockedResourceTypes: envSliceOr("RFQSCOUT_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			BlockTrackers: envBoolOr("RFQSCOUT_BLOCK_TRACKERS", true),
		},
		Scraper: ScraperConfig{
			TargetURL:         envOr("RFQSCOUT_TARGET_URL", DefaultTargetURL),
			CardSelector:      envOr("RFQSCOUT_CARD_SELECTOR", "div.brh-rfq-item"),
			CardLimit:         envIntOr("RFQSCOUT_CARD_LIMIT", 10),
			InitialWait:       envDurationOr("RFQSCOUT_INITIAL_WAIT", 5*time.Second),
			ScrollRounds:      envIntOr("RFQSCOUT_SCROLL_ROUNDS", 5),
			ScrollStep:        envIntOr("RFQSCOUT_SCROLL_STEP", 1000),
			ScrollWait:        envDurationOr("RFQSCOUT_SCROLL_WAIT", 1500*time.Millisecond),
			FinalWait:         envDurationOr("RFQSCOUT_FINAL_WAIT", 3*time.Second),
			NavigationTimeout: envDurationOr("RFQSCOUT_NAV_TIMEOUT", 30*time.Second),
			RunTimeout:        envDurationOr("RFQSCOUT_RUN_TIMEOUT", 5*time.Minute),
		},
		Output: OutputConfig{
			Dir: envOr("RFQSCOUT_OUTPUT_DIR", filepath.Join(base, "scraped_data")),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("RFQSCOUT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("RFQSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RFQSCOUT_RATE_RPS", 1.0),
			Burst:             envIntOr("RFQSCOUT_RATE_BURST", 3),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("RFQSCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("RFQSCOUT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("RFQSCOUT_LOG_LEVEL", "info"),
			Format: envOr("RFQSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// DriverName is the platform-dependent driver executable name.
func DriverName(goos string) string {
	if goos == "windows" {
		return "chromedriver.exe"
	}
	return "chromedriver"
}

// InstallDir is the directory holding the running executable, falling back
// to the working directory when it cannot be resolved.
func InstallDir() string {
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
