package reframe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zsiec/reframe/internal/metrics"
	"github.com/zsiec/reframe/internal/reframe/buffer"
	"github.com/zsiec/reframe/internal/reframe/detect"
	"github.com/zsiec/reframe/internal/reframe/index"
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// Duration returns the stream duration, building the index on first use.
// It reports false when the source is not seekable, indexing is disabled or
// the format is not known yet.
func (s *Session) Duration(ctx context.Context) (index.Result, bool) {
	if s.usable() != nil {
		return index.Result{}, false
	}
	if err := s.ensureDetected(); err != nil {
		return index.Result{}, false
	}
	idx := s.ensureIndex(ctx, false)
	if idx == nil {
		return index.Result{}, false
	}
	return *idx, true
}

// ensureDetected classifies a seekable source from its own prefix, so a seek
// can be resolved before anything was fed.
func (s *Session) ensureDetected() error {
	if s.syntax.IsDetected() || s.desc.Source == nil {
		return nil
	}
	size := int64(buffer.DefaultReadChunkSize)
	if s.desc.SourceSize < size {
		size = s.desc.SourceSize
	}
	prefix := make([]byte, size)
	n, err := s.desc.Source.ReadAt(prefix, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reframe: reading source prefix: %w", err)
	}

	res, err := detect.Detect(prefix[:n], s.hints(int64(n) >= s.desc.SourceSize))
	if errors.Is(err, parser.ErrNeedMoreData) {
		return nil
	}
	if err != nil {
		return s.fail("detect", err)
	}
	if err := s.adopt(res); err != nil {
		return s.fail("detect", err)
	}
	return nil
}

// ensureIndex builds the index once. full rebuilds a probe-only result with
// entries, as needed to resolve a seek into a large source.
func (s *Session) ensureIndex(ctx context.Context, full bool) *index.Result {
	if s.desc.Source == nil || !s.syntax.IsDetected() {
		return nil
	}
	// IAMF timing is only known once the codec configuration was parsed
	if s.syntax == types.SyntaxObjectAudio && !s.audioRate {
		return nil
	}
	if s.idxTried && (!full || s.idxFull || (s.idx != nil && !s.idx.Approximate)) {
		return s.idx
	}

	window := s.opts.IndexWindow
	if full {
		s.idxFull = true
		if window < 0 {
			window = -window
		}
	}

	key := s.indexKey(window)
	if res := s.cachedIndex(ctx, key); res != nil {
		s.idx, s.idxTried = res, true
		return res
	}

	parse, err := newParser(s.syntax, s.codec, s.av1Opts)
	if err != nil {
		return nil
	}
	started := time.Now()
	res, err := index.Build(ctx, s.desc.Source, s.desc.SourceSize, index.Params{
		Syntax:       s.syntax,
		Codec:        s.codec,
		HeaderSize:   int64(s.headerSize),
		FPS:          s.fps,
		Parse:        parse,
		Window:       window,
		ProbeCeiling: s.opts.ProbeCeiling,
		Force:        s.opts.ForceIndexing,
	})
	elapsed := time.Since(started).Seconds()

	switch {
	case errors.Is(err, index.ErrDisabled):
		metrics.RecordIndexBuild(s.syntax.String(), "disabled", elapsed)
		s.log.WithError(err).Debug("Indexing skipped")
		s.idxTried = true
		return s.idx
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// retried on next need
		return s.idx
	case err != nil:
		metrics.RecordIndexBuild(s.syntax.String(), "error", elapsed)
		s.log.WithError(err).Warn("Indexing failed")
		s.idxTried = true
		return s.idx
	}

	result := "complete"
	if res.Approximate {
		result = "probed"
	}
	metrics.RecordIndexBuild(s.syntax.String(), result, elapsed)
	s.log.WithFields(map[string]interface{}{
		"duration_s": res.Seconds(),
		"entries":    len(res.Entries),
		"approx":     res.Approximate,
		"bitrate":    res.Bitrate,
	}).Info("Source indexed")

	s.idx, s.idxTried = res, true
	s.storeIndex(ctx, key, res)
	return res
}

func (s *Session) indexKey(window float64) string {
	if s.desc.CacheKey == "" || s.opts.IndexStore == nil {
		return ""
	}
	return fmt.Sprintf("%s|%s|%s|%g|%t", s.desc.CacheKey, s.syntax, s.fps, window, s.opts.ForceIndexing)
}

func (s *Session) cachedIndex(ctx context.Context, key string) *index.Result {
	if key == "" {
		return nil
	}
	res, err := s.opts.IndexStore.Get(ctx, key)
	switch {
	case err == nil:
		metrics.IncrementIndexCache("hit")
		s.log.WithField("key", key).Debug("Index cache hit")
		return res
	case errors.Is(err, index.ErrNotFound):
		metrics.IncrementIndexCache("miss")
	default:
		metrics.IncrementIndexCache("error")
		s.log.WithError(err).Warn("Index cache lookup failed")
	}
	return nil
}

func (s *Session) storeIndex(ctx context.Context, key string, res *index.Result) {
	if key == "" {
		return
	}
	if err := s.opts.IndexStore.Put(ctx, key, res); err != nil {
		s.log.WithError(err).Warn("Index cache store failed")
	}
}
