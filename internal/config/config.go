package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Dataset   DatasetConfig   `yaml:"dataset" envconfig:"DATASET"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"5006"`
	PortRetries     int           `yaml:"port_retries" envconfig:"PORT_RETRIES" default:"10"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5006"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/tagboard.log"`
}

// DatasetConfig describes the tabular time-series file the dashboard serves
type DatasetConfig struct {
	Path            string  `yaml:"path" envconfig:"PATH"`
	Format          string  `yaml:"format" envconfig:"FORMAT" default:"csv"`
	AliasesFile     string  `yaml:"aliases_file" envconfig:"ALIASES_FILE"`
	SampleRate      float64 `yaml:"sample_rate" envconfig:"SAMPLE_RATE" default:"1.0"`
	TimestampColumn string  `yaml:"timestamp_column" envconfig:"TIMESTAMP_COLUMN"`
	TimestampFormat string  `yaml:"timestamp_format" envconfig:"TIMESTAMP_FORMAT"`
	Sheet           string  `yaml:"sheet" envconfig:"SHEET"`
	Delimiter       string  `yaml:"delimiter" envconfig:"DELIMITER"`
	Watch           bool    `yaml:"watch" envconfig:"WATCH" default:"true"`
	HistogramBins   int     `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS" default:"100"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// SupportedFormats lists the dataset file formats the loader understands.
var SupportedFormats = []string{"csv", "tsv", "excel", "json"}

// Load loads configuration from environment variables and an optional config file.
// Precedence is env over file over defaults.
func Load() (*Config, error) {
	var envCfg Config
	if err := envconfig.Process("TAGBOARD", &envCfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg := envCfg
	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, envCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// mergeConfigs layers the file configuration underneath the env layer. envconfig
// fills every unset variable with its default tag, so a field still holding its
// default is treated as not set by the environment and falls back to the file
// value. An env var explicitly set to the default value is indistinguishable
// from an unset one and loses to the file.
func mergeConfigs(fileCfg, envCfg Config) Config {
	def := Default()
	out := envCfg

	out.Server.Port = pick(envCfg.Server.Port, def.Server.Port, fileCfg.Server.Port)
	out.Server.PortRetries = pick(envCfg.Server.PortRetries, def.Server.PortRetries, fileCfg.Server.PortRetries)
	out.Server.ReadTimeout = pick(envCfg.Server.ReadTimeout, def.Server.ReadTimeout, fileCfg.Server.ReadTimeout)
	out.Server.WriteTimeout = pick(envCfg.Server.WriteTimeout, def.Server.WriteTimeout, fileCfg.Server.WriteTimeout)
	out.Server.IdleTimeout = pick(envCfg.Server.IdleTimeout, def.Server.IdleTimeout, fileCfg.Server.IdleTimeout)
	out.Server.MaxHeaderBytes = pick(envCfg.Server.MaxHeaderBytes, def.Server.MaxHeaderBytes, fileCfg.Server.MaxHeaderBytes)
	out.Server.ShutdownTimeout = pick(envCfg.Server.ShutdownTimeout, def.Server.ShutdownTimeout, fileCfg.Server.ShutdownTimeout)

	if sameStrings(envCfg.Security.AllowedOrigins, def.Security.AllowedOrigins) {
		out.Security.AllowedOrigins = fileCfg.Security.AllowedOrigins
	}
	out.Security.EnableCORS = pick(envCfg.Security.EnableCORS, def.Security.EnableCORS, fileCfg.Security.EnableCORS)
	out.Security.RateLimit.Enabled = pick(envCfg.Security.RateLimit.Enabled, def.Security.RateLimit.Enabled, fileCfg.Security.RateLimit.Enabled)
	out.Security.RateLimit.RPS = pick(envCfg.Security.RateLimit.RPS, def.Security.RateLimit.RPS, fileCfg.Security.RateLimit.RPS)
	out.Security.RateLimit.Burst = pick(envCfg.Security.RateLimit.Burst, def.Security.RateLimit.Burst, fileCfg.Security.RateLimit.Burst)

	out.Logging.Level = pick(envCfg.Logging.Level, def.Logging.Level, fileCfg.Logging.Level)
	out.Logging.Format = pick(envCfg.Logging.Format, def.Logging.Format, fileCfg.Logging.Format)
	out.Logging.Output = pick(envCfg.Logging.Output, def.Logging.Output, fileCfg.Logging.Output)
	out.Logging.FilePath = pick(envCfg.Logging.FilePath, def.Logging.FilePath, fileCfg.Logging.FilePath)

	out.Dataset.Path = pick(envCfg.Dataset.Path, def.Dataset.Path, fileCfg.Dataset.Path)
	out.Dataset.Format = pick(envCfg.Dataset.Format, def.Dataset.Format, fileCfg.Dataset.Format)
	out.Dataset.AliasesFile = pick(envCfg.Dataset.AliasesFile, def.Dataset.AliasesFile, fileCfg.Dataset.AliasesFile)
	out.Dataset.SampleRate = pick(envCfg.Dataset.SampleRate, def.Dataset.SampleRate, fileCfg.Dataset.SampleRate)
	out.Dataset.TimestampColumn = pick(envCfg.Dataset.TimestampColumn, def.Dataset.TimestampColumn, fileCfg.Dataset.TimestampColumn)
	out.Dataset.TimestampFormat = pick(envCfg.Dataset.TimestampFormat, def.Dataset.TimestampFormat, fileCfg.Dataset.TimestampFormat)
	out.Dataset.Sheet = pick(envCfg.Dataset.Sheet, def.Dataset.Sheet, fileCfg.Dataset.Sheet)
	out.Dataset.Delimiter = pick(envCfg.Dataset.Delimiter, def.Dataset.Delimiter, fileCfg.Dataset.Delimiter)
	out.Dataset.Watch = pick(envCfg.Dataset.Watch, def.Dataset.Watch, fileCfg.Dataset.Watch)
	out.Dataset.HistogramBins = pick(envCfg.Dataset.HistogramBins, def.Dataset.HistogramBins, fileCfg.Dataset.HistogramBins)

	out.WebSocket.ReadBufferSize = pick(envCfg.WebSocket.ReadBufferSize, def.WebSocket.ReadBufferSize, fileCfg.WebSocket.ReadBufferSize)
	out.WebSocket.WriteBufferSize = pick(envCfg.WebSocket.WriteBufferSize, def.WebSocket.WriteBufferSize, fileCfg.WebSocket.WriteBufferSize)
	out.WebSocket.PingPeriod = pick(envCfg.WebSocket.PingPeriod, def.WebSocket.PingPeriod, fileCfg.WebSocket.PingPeriod)
	out.WebSocket.PongWait = pick(envCfg.WebSocket.PongWait, def.WebSocket.PongWait, fileCfg.WebSocket.PongWait)

	return out
}

// pick returns the env value when it differs from the default, the file value otherwise.
func pick[T comparable](envVal, defVal, fileVal T) T {
	if envVal != defVal {
		return envVal
	}
	return fileVal
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// loadFromFile loads configuration from a YAML file, applying env defaults first
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.PortRetries < 0 {
		return fmt.Errorf("port retries must not be negative")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Dataset.SampleRate <= 0 || c.Dataset.SampleRate > 1 {
		return fmt.Errorf("sample rate must be in (0, 1], got %g", c.Dataset.SampleRate)
	}

	if c.Dataset.HistogramBins < 1 || c.Dataset.HistogramBins > 1000 {
		return fmt.Errorf("histogram bins must be between 1 and 1000, got %d", c.Dataset.HistogramBins)
	}

	if !formatSupported(c.Dataset.Format) {
		return fmt.Errorf("unsupported dataset format %q, supported: %v", c.Dataset.Format, SupportedFormats)
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/tagboard.log"
	}

	return nil
}

func formatSupported(format string) bool {
	for _, f := range SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// findConfigFile returns the path to the config file, if one exists
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5006,
			PortRetries:     10,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:5006"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/tagboard.log",
		},
		Dataset: DatasetConfig{
			Format:        "csv",
			SampleRate:    1.0,
			Watch:         true,
			HistogramBins: 100,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
