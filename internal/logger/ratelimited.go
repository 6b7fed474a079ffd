package logger

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimited is a Logger whose warnings pass through a token bucket. A
// corrupt stream can produce one malformed-unit warning per unit; the limiter
// keeps the first burst and then a steady trickle. Other levels are not
// limited.
//
// Loggers derived with WithField(s) and WithError share the bucket and the
// suppressed counter of their parent.
type RateLimited struct {
	base    Logger
	limiter *rate.Limiter
	dropped *atomic.Int64
	now     func() time.Time
}

// NewRateLimited wraps base. A non-positive perSecond disables limiting.
func NewRateLimited(base Logger, perSecond float64, burst int) *RateLimited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		base:    base,
		limiter: rate.NewLimiter(limit, burst),
		dropped: new(atomic.Int64),
		now:     time.Now,
	}
}

// Suppressed returns the number of warnings dropped so far.
func (r *RateLimited) Suppressed() int64 {
	return r.dropped.Load()
}

// allow consumes a token. When warnings were dropped since the last one that
// passed, the returned logger carries their count.
func (r *RateLimited) allow() (Logger, bool) {
	if !r.limiter.AllowN(r.now(), 1) {
		r.dropped.Add(1)
		return nil, false
	}
	if n := r.dropped.Swap(0); n > 0 {
		return r.base.WithField("suppressed", n), true
	}
	return r.base, true
}

func (r *RateLimited) derive(base Logger) Logger {
	return &RateLimited{base: base, limiter: r.limiter, dropped: r.dropped, now: r.now}
}

// WithFields implements Logger interface
func (r *RateLimited) WithFields(fields map[string]interface{}) Logger {
	return r.derive(r.base.WithFields(fields))
}

// WithField implements Logger interface
func (r *RateLimited) WithField(key string, value interface{}) Logger {
	return r.derive(r.base.WithField(key, value))
}

// WithError implements Logger interface
func (r *RateLimited) WithError(err error) Logger {
	return r.derive(r.base.WithError(err))
}

// Warn implements Logger interface
func (r *RateLimited) Warn(args ...interface{}) {
	if l, ok := r.allow(); ok {
		l.Warn(args...)
	}
}

// Warnf implements Logger interface
func (r *RateLimited) Warnf(format string, args ...interface{}) {
	if l, ok := r.allow(); ok {
		l.Warnf(format, args...)
	}
}

// Log implements Logger interface
func (r *RateLimited) Log(level logrus.Level, args ...interface{}) {
	if level == logrus.WarnLevel {
		r.Warn(args...)
		return
	}
	r.base.Log(level, args...)
}

func (r *RateLimited) Debug(args ...interface{}) { r.base.Debug(args...) }
func (r *RateLimited) Info(args ...interface{})  { r.base.Info(args...) }
func (r *RateLimited) Error(args ...interface{}) { r.base.Error(args...) }

func (r *RateLimited) Debugf(format string, args ...interface{}) { r.base.Debugf(format, args...) }
func (r *RateLimited) Infof(format string, args ...interface{})  { r.base.Infof(format, args...) }
func (r *RateLimited) Errorf(format string, args ...interface{}) { r.base.Errorf(format, args...) }
