package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"outagecli/internal/dataprocessing"
	"outagecli/pkg/contracts/domain"
)

// EnvPrefix namespaces every environment variable, e.g. OUTAGE_SERVER_PORT.
const EnvPrefix = "OUTAGE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// SourceConfig describes the outage workbook and how its sheets are read.
type SourceConfig struct {
	Workbook string `yaml:"workbook" envconfig:"WORKBOOK"`
	// Periods maps a sheet name to the month its matrix is bound to, as
	// YYYY-MM. Env form: "November:2025-11,December:2025-12".
	Periods        map[string]string `yaml:"periods" envconfig:"PERIODS"`
	MeterColumns   []string          `yaml:"meter_columns" envconfig:"METER_COLUMNS"`
	OutageColumns  []string          `yaml:"outage_columns" envconfig:"OUTAGE_COLUMNS"`
	RestoreColumns []string          `yaml:"restore_columns" envconfig:"RESTORE_COLUMNS"`
	RequireRestore bool              `yaml:"require_restore" envconfig:"REQUIRE_RESTORE"`
	OutputSheet    string            `yaml:"output_sheet" envconfig:"OUTPUT_SHEET"`
	MeterLabel     string            `yaml:"meter_label" envconfig:"METER_LABEL"`
	// DropEmptyRows skips all-blank rows inside a sheet instead of counting
	// them as records without meter or date.
	DropEmptyRows bool `yaml:"drop_empty_rows" envconfig:"DROP_EMPTY_ROWS"`
}

// CacheConfig controls the loaded-workbook cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ENABLED"`
	TTL     time.Duration `yaml:"ttl" envconfig:"TTL"`
	MaxSize int           `yaml:"max_size" envconfig:"MAX_SIZE"`
}

// TelemetryConfig controls OpenTelemetry setup
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment   string `yaml:"environment" envconfig:"ENVIRONMENT"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
}

// Load builds the configuration from defaults, the first config file found
// and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags, so unset variables leave file values alone.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive")
	}

	c.Logging.Format = "json"
	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	if _, err := c.Source.Bindings(); err != nil {
		return err
	}
	if err := c.Source.ColumnMapping().Validate(); err != nil {
		return err
	}
	if c.Source.OutputSheet == "" {
		return fmt.Errorf("output sheet name must not be empty")
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache max size must not be negative")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none", "":
	default:
		return fmt.Errorf("unsupported trace exporter: %q", c.Telemetry.TraceExporter)
	}

	return nil
}

// ColumnMapping turns the configured aliases into a normalizer mapping.
func (s SourceConfig) ColumnMapping() dataprocessing.ColumnMapping {
	return dataprocessing.ColumnMapping{Columns: []dataprocessing.ColumnSpec{
		{Logical: dataprocessing.ColumnMeterID, Aliases: trimAll(s.MeterColumns), Required: true},
		{Logical: dataprocessing.ColumnOutageTime, Aliases: trimAll(s.OutageColumns), Required: true},
		{Logical: dataprocessing.ColumnRestoreTime, Aliases: trimAll(s.RestoreColumns), Required: s.RequireRestore},
	}}
}

// Bindings parses Periods. Sheet names are trimmed.
func (s SourceConfig) Bindings() (map[string]domain.MonthBinding, error) {
	bindings := make(map[string]domain.MonthBinding, len(s.Periods))
	for sheet, month := range s.Periods {
		name := strings.TrimSpace(sheet)
		if name == "" {
			return nil, fmt.Errorf("period with empty sheet name")
		}
		b, err := domain.ParseMonthBinding(strings.TrimSpace(month))
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", name, err)
		}
		bindings[name] = b
	}
	return bindings, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "console",
			FilePath:    "logs/app.log",
			Development: false,
		},
		Source: SourceConfig{
			Workbook:       DefaultWorkbook,
			Periods:        map[string]string{},
			MeterColumns:   []string{"Meter No", "Meterno"},
			OutageColumns:  []string{"Outage Date Time", "OutageDateTime"},
			RestoreColumns: []string{"Restore Date Time", "RestoreDateTime"},
			RequireRestore: true,
			OutputSheet:    DefaultOutputSheet,
			MeterLabel:     DefaultMeterLabel,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DefaultCacheTTL,
			MaxSize: DefaultCacheSize,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   AppName,
			Environment:   "development",
			EnableTracing: false,
			EnableMetrics: true,
			TraceExporter: "none",
		},
	}
}
