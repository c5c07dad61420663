package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apierrors "calqtrade/internal/errors"
)

// Config is the full application configuration, assembled from an
// optional YAML file overlaid with CALQ_* environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Fees      FeesConfig      `yaml:"fees" envconfig:"FEES"`
	Sessions  SessionsConfig  `yaml:"sessions" envconfig:"SESSIONS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig tunes the HTTP listener
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// SecurityConfig covers CORS and rate limiting
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig bounds the per-client request rate
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig controls slog output
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// FeesConfig contains the commission schedule and calculation defaults.
// Percentages are human units: 1.12 means 1.12%.
type FeesConfig struct {
	FeePct        float64   `yaml:"fee_pct" envconfig:"FEE_PCT" default:"1.12"`
	STLPct        float64   `yaml:"stl_pct" envconfig:"STL_PCT" default:"0.30"`
	DefaultPolicy string    `yaml:"default_policy" envconfig:"DEFAULT_POLICY" default:"same_day_stl_only"`
	DefaultMode   string    `yaml:"default_mode" envconfig:"DEFAULT_MODE" default:"average_stl"`
	ProfitTargets []float64 `yaml:"profit_targets" envconfig:"PROFIT_TARGETS"`
}

// SessionsConfig controls the in-memory calculation session store
type SessionsConfig struct {
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL" default:"24h"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"5m"`
	MaxLots       int           `yaml:"max_lots" envconfig:"MAX_LOTS" default:"500"`
}

// WebSocketConfig tunes the snapshot push channel
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load reads configuration from the environment and, when present, a
// YAML config file. Environment values win over file values.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("CALQ", &cfg); err != nil {
		return nil, apierrors.NewConfigError("failed to load config from env", err)
	}

	if path := findConfigFile(); path != "" {
		fileConfig, err := loadFromFile(path)
		if err != nil {
			return nil, apierrors.NewConfigError("failed to load config from file", err).
				WithContext("path", path)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, apierrors.NewConfigError("config validation failed", err)
	}
	return &cfg, nil
}

// loadFromFile parses one YAML config file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence).
// Zero-valued env fields fall back to the file value.
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Server.ReadTimeout == 0 {
		envConfig.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if envConfig.Server.WriteTimeout == 0 {
		envConfig.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if envConfig.Server.IdleTimeout == 0 {
		envConfig.Server.IdleTimeout = fileConfig.Server.IdleTimeout
	}
	if envConfig.Server.ShutdownTimeout == 0 {
		envConfig.Server.ShutdownTimeout = fileConfig.Server.ShutdownTimeout
	}
	if envConfig.Server.RequestTimeout == 0 {
		envConfig.Server.RequestTimeout = fileConfig.Server.RequestTimeout
	}
	if len(envConfig.Security.AllowedOrigins) == 0 {
		envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}
	if envConfig.Logging.Level == "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if envConfig.Logging.FilePath == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if envConfig.Fees.FeePct == 0 {
		envConfig.Fees.FeePct = fileConfig.Fees.FeePct
	}
	if envConfig.Fees.STLPct == 0 {
		envConfig.Fees.STLPct = fileConfig.Fees.STLPct
	}
	if envConfig.Fees.DefaultPolicy == "" {
		envConfig.Fees.DefaultPolicy = fileConfig.Fees.DefaultPolicy
	}
	if envConfig.Fees.DefaultMode == "" {
		envConfig.Fees.DefaultMode = fileConfig.Fees.DefaultMode
	}
	if len(envConfig.Fees.ProfitTargets) == 0 {
		envConfig.Fees.ProfitTargets = fileConfig.Fees.ProfitTargets
	}
	if envConfig.Sessions.TTL == 0 {
		envConfig.Sessions.TTL = fileConfig.Sessions.TTL
	}
	if envConfig.Sessions.SweepInterval == 0 {
		envConfig.Sessions.SweepInterval = fileConfig.Sessions.SweepInterval
	}
	if envConfig.Sessions.MaxLots == 0 {
		envConfig.Sessions.MaxLots = fileConfig.Sessions.MaxLots
	}

	return envConfig
}

// validate rejects settings the server cannot run with and fills in
// safe fallbacks for cosmetic ones
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

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Fees.FeePct < 0 || c.Fees.FeePct >= 100 {
		return fmt.Errorf("invalid fee percentage: %.4f", c.Fees.FeePct)
	}
	if c.Fees.STLPct < 0 || c.Fees.STLPct > c.Fees.FeePct {
		return fmt.Errorf("invalid levy percentage: %.4f", c.Fees.STLPct)
	}
	for _, pct := range c.Fees.ProfitTargets {
		if pct <= 0 {
			return fmt.Errorf("profit targets must be positive, got %.4f", pct)
		}
	}

	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Sessions.MaxLots <= 0 {
		return fmt.Errorf("session max lots must be positive")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// findConfigFile probes the usual locations and returns the first file
// that exists, or empty when running on env vars alone.
func findConfigFile() string {
	for _, path := range []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Default returns the built-in configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
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
			FilePath: "logs/app.log",
		},
		Fees: FeesConfig{
			FeePct:        1.12,
			STLPct:        0.30,
			DefaultPolicy: "same_day_stl_only",
			DefaultMode:   "average_stl",
			ProfitTargets: []float64{0.5, 1, 2, 3, 5, 10, 15, 20, 25, 30},
		},
		Sessions: SessionsConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 5 * time.Minute,
			MaxLots:       500,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
