package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Reframe    ReframeConfig    `mapstructure:"reframe"`
	IndexCache IndexCacheConfig `mapstructure:"index_cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	// Admission limit for concurrent demux requests
	MaxSessions    int     `mapstructure:"max_sessions"`
	DemuxRateLimit float64 `mapstructure:"demux_rate_limit"` // requests per second, 0 = unlimited
	DemuxBurst     int     `mapstructure:"demux_burst"`
}

type ReframeConfig struct {
	FPS           string  `mapstructure:"fps"`          // "30000/1001", empty = from source
	IndexWindow   float64 `mapstructure:"index_window"` // seconds, negative = only for small sources
	ProbeCeiling  int64   `mapstructure:"probe_ceiling"`
	ForceIndexing bool    `mapstructure:"force_indexing"`
	NoTime        bool    `mapstructure:"notime"`
	// Keep (and insert) temporal delimiters in emitted AV1 units
	TemporalDelimiter bool `mapstructure:"temporal_delimiter"`
	MaxBufferBytes    int  `mapstructure:"max_buffer_bytes"`
	// Fill ISOBMFF sample dependency flags on video units
	Dependencies bool `mapstructure:"dependencies"`
	// Malformed-unit warnings per second per session
	WarnRate  float64 `mapstructure:"warn_rate"`
	WarnBurst int     `mapstructure:"warn_burst"`
}

type IndexCacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// Load reads configPath (optional), applies REFRAME_* environment overrides
// and defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variable override
	v.SetEnvPrefix("REFRAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used without a file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", 256<<20) // 256MB
	v.SetDefault("server.max_sessions", 16)
	v.SetDefault("server.demux_rate_limit", 0)
	v.SetDefault("server.demux_burst", 4)

	// Reframe defaults
	v.SetDefault("reframe.fps", "")
	v.SetDefault("reframe.index_window", -1.0)
	v.SetDefault("reframe.probe_ceiling", 20000000)
	v.SetDefault("reframe.force_indexing", false)
	v.SetDefault("reframe.notime", false)
	v.SetDefault("reframe.temporal_delimiter", false)
	v.SetDefault("reframe.max_buffer_bytes", 64<<20) // 64MB
	v.SetDefault("reframe.dependencies", false)
	v.SetDefault("reframe.warn_rate", 1.0)
	v.SetDefault("reframe.warn_burst", 5)

	// Index cache defaults
	v.SetDefault("index_cache.enabled", false)
	v.SetDefault("index_cache.redis_addr", "localhost:6379")
	v.SetDefault("index_cache.redis_db", 0)
	v.SetDefault("index_cache.key_prefix", "reframe:index:")
	v.SetDefault("index_cache.ttl", "24h")
	v.SetDefault("index_cache.dial_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)
}
