package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReframeConfigValidate(t *testing.T) {
	valid := func() ReframeConfig {
		return ReframeConfig{
			FPS:            "30000/1001",
			IndexWindow:    -1,
			ProbeCeiling:   20000000,
			MaxBufferBytes: 1 << 20,
			WarnRate:       1,
			WarnBurst:      5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *ReframeConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *ReframeConfig) {},
		},
		{
			name:   "auto fps",
			mutate: func(c *ReframeConfig) { c.FPS = "" },
		},
		{
			name:   "decimal fps",
			mutate: func(c *ReframeConfig) { c.FPS = "29.97" },
		},
		{
			name:    "invalid fps",
			mutate:  func(c *ReframeConfig) { c.FPS = "fast" },
			wantErr: true,
			errMsg:  "invalid fps",
		},
		{
			name:    "zero probe ceiling",
			mutate:  func(c *ReframeConfig) { c.ProbeCeiling = 0 },
			wantErr: true,
			errMsg:  "probe_ceiling must be positive",
		},
		{
			name:    "zero buffer",
			mutate:  func(c *ReframeConfig) { c.MaxBufferBytes = 0 },
			wantErr: true,
			errMsg:  "max_buffer_bytes must be positive",
		},
		{
			name:    "rate without burst",
			mutate:  func(c *ReframeConfig) { c.WarnBurst = 0 },
			wantErr: true,
			errMsg:  "warn_burst must be positive",
		},
		{
			name:   "warnings unlimited",
			mutate: func(c *ReframeConfig) { c.WarnRate, c.WarnBurst = 0, 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndexCacheConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  IndexCacheConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "disabled ignores everything",
			config: IndexCacheConfig{Enabled: false, RedisDB: -1},
		},
		{
			name:   "valid config",
			config: IndexCacheConfig{Enabled: true, RedisAddr: "localhost:6379", TTL: time.Hour},
		},
		{
			name:    "missing address",
			config:  IndexCacheConfig{Enabled: true, TTL: time.Hour},
			wantErr: true,
			errMsg:  "redis_addr is required",
		},
		{
			name:    "negative DB",
			config:  IndexCacheConfig{Enabled: true, RedisAddr: "localhost:6379", RedisDB: -1, TTL: time.Hour},
			wantErr: true,
			errMsg:  "invalid Redis database number",
		},
		{
			name:    "zero ttl",
			config:  IndexCacheConfig{Enabled: true, RedisAddr: "localhost:6379"},
			wantErr: true,
			errMsg:  "ttl must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSectionValidate(t *testing.T) {
	tests := []struct {
		name   string
		config interface{ Validate() error }
		errMsg string
	}{
		{"server ok", &ServerConfig{HTTPPort: 8080, MaxUploadBytes: 1, MaxSessions: 1}, ""},
		{"server port", &ServerConfig{HTTPPort: 70000, MaxUploadBytes: 1, MaxSessions: 1}, "invalid HTTP port: 70000"},
		{"server timeouts", &ServerConfig{HTTPPort: 80, MaxUploadBytes: 1, MaxSessions: 1, ReadTimeout: -time.Second}, "timeouts cannot be negative"},
		{"server sessions", &ServerConfig{HTTPPort: 80, MaxUploadBytes: 1}, "max_sessions must be positive"},
		{"server rate without burst", &ServerConfig{HTTPPort: 80, MaxUploadBytes: 1, MaxSessions: 1, DemuxRateLimit: 2}, "demux_burst must be positive"},
		{"logging ok", &LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, ""},
		{"logging level", &LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}, "invalid log level: loud"},
		{"logging format", &LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, "log format must be 'json' or 'text'"},
		{"logging file size", &LoggingConfig{Level: "info", Format: "json", Output: "/var/log/reframe.log"}, "max_size must be positive for file output"},
		{"metrics disabled", &MetricsConfig{}, ""},
		{"metrics port", &MetricsConfig{Enabled: true, Path: "/metrics"}, "invalid metrics port: 0"},
		{"metrics path", &MetricsConfig{Enabled: true, Port: 9090}, "metrics path cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.HTTPPort = 0
	cfg.Reframe.ProbeCeiling = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "server config: invalid HTTP port")
	assert.Contains(t, msg, "reframe config: probe_ceiling must be positive")
	assert.Contains(t, msg, "logging config: log format")
	assert.Len(t, strings.Split(msg, "\n"), 3)
}

func TestLoggingIsFile(t *testing.T) {
	for out, want := range map[string]bool{"": false, "stdout": false, "stderr": false, "/tmp/x.log": true} {
		l := LoggingConfig{Output: out}
		assert.Equal(t, want, l.IsFile(), out)
	}
}
