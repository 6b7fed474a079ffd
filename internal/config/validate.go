package config

import (
	"errors"
	"fmt"

	"github.com/zsiec/reframe/internal/reframe/types"
)

var logLevels = []string{"panic", "fatal", "error", "warn", "info", "debug", "trace"}

// problems accumulates failed checks so one Validate call reports all of
// them.
type problems []error

func (p *problems) require(ok bool, format string, args ...interface{}) {
	if !ok {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

func (p *problems) section(name string, err error) {
	if err != nil {
		*p = append(*p, fmt.Errorf("%s config: %w", name, err))
	}
}

func (p problems) err() error { return errors.Join(p...) }

// Validate reports every invalid setting, grouped by section.
func (c *Config) Validate() error {
	var p problems
	p.section("server", c.Server.Validate())
	p.section("reframe", c.Reframe.Validate())
	p.section("index_cache", c.IndexCache.Validate())
	p.section("logging", c.Logging.Validate())
	p.section("metrics", c.Metrics.Validate())
	return p.err()
}

func (s *ServerConfig) Validate() error {
	var p problems
	p.require(validPort(s.HTTPPort), "invalid HTTP port: %d", s.HTTPPort)
	p.require(s.ReadTimeout >= 0 && s.WriteTimeout >= 0 && s.ShutdownTimeout >= 0, "timeouts cannot be negative")
	p.require(s.MaxUploadBytes > 0, "max_upload_bytes must be positive")
	p.require(s.MaxSessions > 0, "max_sessions must be positive")
	p.require(s.DemuxRateLimit >= 0, "demux_rate_limit cannot be negative")
	p.require(s.DemuxRateLimit <= 0 || s.DemuxBurst > 0, "demux_burst must be positive when demux_rate_limit is set")
	return p.err()
}

func (r *ReframeConfig) Validate() error {
	var p problems
	if _, err := types.ParseRational(r.FPS); err != nil {
		p = append(p, fmt.Errorf("invalid fps: %w", err))
	}
	p.require(r.ProbeCeiling > 0, "probe_ceiling must be positive")
	p.require(r.MaxBufferBytes > 0, "max_buffer_bytes must be positive")
	p.require(r.WarnRate >= 0, "warn_rate cannot be negative")
	p.require(r.WarnRate <= 0 || r.WarnBurst > 0, "warn_burst must be positive when warn_rate is set")
	return p.err()
}

// Validate checks the cache settings only when the cache is enabled.
func (i *IndexCacheConfig) Validate() error {
	if !i.Enabled {
		return nil
	}
	var p problems
	p.require(i.RedisAddr != "", "redis_addr is required when the index cache is enabled")
	p.require(i.RedisDB >= 0, "invalid Redis database number: %d", i.RedisDB)
	p.require(i.TTL > 0, "ttl must be positive")
	p.require(i.DialTimeout >= 0, "dial_timeout cannot be negative")
	return p.err()
}

func (l *LoggingConfig) Validate() error {
	var p problems
	p.require(contains(logLevels, l.Level), "invalid log level: %s", l.Level)
	p.require(l.Format == "json" || l.Format == "text", "log format must be 'json' or 'text'")
	if l.IsFile() {
		p.require(l.MaxSize > 0, "max_size must be positive for file output")
		p.require(l.MaxBackups >= 0, "max_backups cannot be negative")
		p.require(l.MaxAge >= 0, "max_age cannot be negative")
	}
	return p.err()
}

// IsFile reports whether Output names a rotated log file.
func (l *LoggingConfig) IsFile() bool {
	return l.Output != "" && l.Output != "stdout" && l.Output != "stderr"
}

func (m *MetricsConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	var p problems
	p.require(validPort(m.Port), "invalid metrics port: %d", m.Port)
	p.require(m.Path != "", "metrics path cannot be empty")
	return p.err()
}

func validPort(port int) bool { return port >= 1 && port <= 65535 }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
