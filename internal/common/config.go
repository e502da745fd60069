package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration. There is no package-level
// mutable configuration state; every component receives the struct (or its
// section) through its constructor.
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Portal      PortalConfig  `toml:"portal"`
	Auth        AuthConfig    `toml:"auth"`
	Sites       SitesConfig   `toml:"sites"`
	Fetch       FetchConfig   `toml:"fetch"`
	Export      ExportConfig  `toml:"export"`
	Storage     StorageConfig `toml:"storage"`
	Status      StatusConfig  `toml:"status"`
	Alert       AlertConfig   `toml:"alert"`
	Watch       WatchConfig   `toml:"watch"`
	Logging     LoggingConfig `toml:"logging"`
}

// PortalConfig describes the scheduling portal endpoints.
type PortalConfig struct {
	BaseURL    string `toml:"base_url" validate:"required,url"`
	DemandPath string `toml:"demand_path" validate:"required"` // provider demand API path
	StatusPath string `toml:"status_path" validate:"required"` // upload status API path
	UserAgent  string `toml:"user_agent"`
}

// AuthConfig controls credential capture and persistence.
type AuthConfig struct {
	CredentialsDir string        `toml:"credentials_dir" validate:"required"` // directory holding the per-day cookie files
	AuthDomain     string        `toml:"auth_domain"`                         // SSO domain the browser leaves once login completes
	LoginTimeout   time.Duration `toml:"login_timeout"`                       // how long to wait for the operator to finish logging in
	ExpiryGrace    time.Duration `toml:"expiry_grace"`                        // extension applied to captured cookie expiries
	Headless       bool          `toml:"headless"`                            // headless browser; login needs a visible window, so default false
}

// SitesConfig locates the managed-site mapping.
type SitesConfig struct {
	MappingPath   string `toml:"mapping_path" validate:"required"` // CSV with station / area_id columns
	StationPrefix string `toml:"station_prefix"`                   // optional station prefix filter, e.g. "D" for UK delivery stations
}

// FetchConfig bounds the concurrent demand fetch.
type FetchConfig struct {
	MaxConcurrency int           `toml:"max_concurrency" validate:"min=1"`
	Days           int           `toml:"days" validate:"min=1"` // date window: today plus the following days-1
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimit      int           `toml:"rate_limit" validate:"min=1"` // requests per second across the batch
}

// ExportConfig controls the CSV outputs.
type ExportConfig struct {
	OutputDir   string `toml:"output_dir" validate:"required"`
	RawFile     string `toml:"raw_file"`     // flattened record export
	PendingFile string `toml:"pending_file"` // pending-work view export
}

// StorageConfig holds embedded store settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// StatusConfig controls upload status polling.
type StatusConfig struct {
	UploadedBy   string        `toml:"uploaded_by"`
	MaxAttempts  int           `toml:"max_attempts" validate:"min=1"`
	PollInterval time.Duration `toml:"poll_interval"`
}

// AlertConfig holds the failure notification webhook. An empty URL disables
// alerting.
type AlertConfig struct {
	WebhookURL string `toml:"webhook_url"`
}

// WatchConfig enables the scheduled collection loop.
type WatchConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron format with seconds
}

// LoggingConfig mirrors the logger setup options.
type LoggingConfig struct {
	Level      string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// NewDefaultConfig creates a configuration with default values. Technical
// parameters are hardcoded here; only user-facing settings belong in
// flexfill.toml.
func NewDefaultConfig() *Config {
	downloads := "./data"
	if home, err := os.UserHomeDir(); err == nil {
		downloads = filepath.Join(home, "Downloads")
	}

	return &Config{
		Environment: "development",
		Portal: PortalConfig{
			BaseURL:    "https://logistics.amazon.co.uk",
			DemandPath: "/internal/scheduling/dsps/api/getProviderDemandData",
			StatusPath: "/internal/capacity/api/statusRecordPage",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36",
		},
		Auth: AuthConfig{
			CredentialsDir: downloads,
			AuthDomain:     "midway-auth.amazon.com",
			LoginTimeout:   10 * time.Minute,
			ExpiryGrace:    24 * time.Hour,
			Headless:       false,
		},
		Sites: SitesConfig{
			MappingPath:   filepath.Join(downloads, "ManagedMappings.csv"),
			StationPrefix: "",
		},
		Fetch: FetchConfig{
			MaxConcurrency: 15,
			Days:           7,
			RequestTimeout: 30 * time.Second,
			RateLimit:      10,
		},
		Export: ExportConfig{
			OutputDir:   downloads,
			RawFile:     "scrape.csv",
			PendingFile: "CO_Format_Pull.csv",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/snapshots",
			},
		},
		Status: StatusConfig{
			UploadedBy:   "",
			MaxAttempts:  5,
			PollInterval: 30 * time.Second,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Schedule: "0 */30 * * * *", // every 30 minutes (cron format with seconds)
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files, environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against its struct constraints.
func Validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
// Zero values leave the config untouched.
func ApplyFlagOverrides(config *Config, stationPrefix string, days int, maxConcurrency int) {
	if stationPrefix != "" {
		config.Sites.StationPrefix = stationPrefix
	}
	if days > 0 {
		config.Fetch.Days = days
	}
	if maxConcurrency > 0 {
		config.Fetch.MaxConcurrency = maxConcurrency
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FLEXFILL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if baseURL := os.Getenv("FLEXFILL_PORTAL_BASE_URL"); baseURL != "" {
		config.Portal.BaseURL = baseURL
	}
	if userAgent := os.Getenv("FLEXFILL_PORTAL_USER_AGENT"); userAgent != "" {
		config.Portal.UserAgent = userAgent
	}

	if dir := os.Getenv("FLEXFILL_CREDENTIALS_DIR"); dir != "" {
		config.Auth.CredentialsDir = dir
	}
	if domain := os.Getenv("FLEXFILL_AUTH_DOMAIN"); domain != "" {
		config.Auth.AuthDomain = domain
	}

	if mapping := os.Getenv("FLEXFILL_SITE_MAPPING"); mapping != "" {
		config.Sites.MappingPath = mapping
	}
	if prefix := os.Getenv("FLEXFILL_STATION_PREFIX"); prefix != "" {
		config.Sites.StationPrefix = prefix
	}

	if maxConcurrency := os.Getenv("FLEXFILL_FETCH_MAX_CONCURRENCY"); maxConcurrency != "" {
		if mc, err := strconv.Atoi(maxConcurrency); err == nil {
			config.Fetch.MaxConcurrency = mc
		}
	}
	if days := os.Getenv("FLEXFILL_FETCH_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil {
			config.Fetch.Days = d
		}
	}
	if timeout := os.Getenv("FLEXFILL_FETCH_REQUEST_TIMEOUT"); timeout != "" {
		if rt, err := time.ParseDuration(timeout); err == nil {
			config.Fetch.RequestTimeout = rt
		}
	}

	if outputDir := os.Getenv("FLEXFILL_EXPORT_OUTPUT_DIR"); outputDir != "" {
		config.Export.OutputDir = outputDir
	}

	if badgerPath := os.Getenv("FLEXFILL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if webhook := os.Getenv("FLEXFILL_ALERT_WEBHOOK"); webhook != "" {
		config.Alert.WebhookURL = webhook
	}

	if level := os.Getenv("FLEXFILL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}
