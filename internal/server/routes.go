package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/zsiec/reframe/internal/errors"
	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/reframe"
	"github.com/zsiec/reframe/internal/reframe/types"
	"github.com/zsiec/reframe/internal/report"
	"github.com/zsiec/reframe/pkg/version"
)

// maxReportedUnits caps the units listed in one demux response.
const maxReportedUnits = 100000

// handleVersion handles the /version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := s.writeJSON(w, http.StatusOK, version.GetInfo()); err != nil {
		s.logger.WithError(err).Error("Failed to encode version response")
	}
}

type probeResponse struct {
	Confidence string `json:"confidence"`
	Syntax     string `json:"syntax"`
	MIME       string `json:"mime,omitempty"`
}

// handleProbe grades the request body without creating a session.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res := reframe.Probe(body)
	_ = s.writeJSON(w, http.StatusOK, probeResponse{
		Confidence: res.Confidence.String(),
		Syntax:     res.Syntax.String(),
		MIME:       res.MIME,
	})
}

// handleDemux reframes the request body and lists the delivered units.
// Query parameters: fps, codec (raw VPx streams), start (seconds) and key
// (index cache key).
func (s *Server) handleDemux(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	session, start, err := s.newSession(r, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer session.s.Close()

	if err := reframe.Drive(r.Context(), session.s, bytes.NewReader(body), int64(len(body)), start); err != nil {
		summary := session.sink.Summary(session.s)
		if len(summary.Units) == 0 {
			s.writeError(w, r, err)
			return
		}
		// partial output is still useful to the client
		summary.Error = err.Error()
		_ = s.writeJSON(w, http.StatusOK, summary)
		return
	}

	if session.sink.Dropped > 0 {
		logger.FromContext(r.Context()).WithField("unlisted", session.sink.Dropped).Warn("Demux response truncated")
	}
	_ = s.writeJSON(w, http.StatusOK, session.sink.Summary(session.s))
}

type durationResponse struct {
	Seconds     float64 `json:"seconds"`
	Duration    uint64  `json:"duration"`
	Timescale   uint32  `json:"timescale"`
	Approximate bool    `json:"approximate"`
	Bitrate     uint64  `json:"bitrate"`
	Entries     int     `json:"entries"`
}

// handleDuration indexes the request body and reports its duration.
func (s *Server) handleDuration(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	session, _, err := s.newSession(r, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer session.s.Close()

	idx, ok := session.s.Duration(r.Context())
	if !ok {
		if err := session.s.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, errors.New(errors.ErrorTypeUnsupported, "duration is unknown for this stream", http.StatusUnprocessableEntity).
			WithCode("no_index"))
		return
	}
	_ = s.writeJSON(w, http.StatusOK, durationResponse{
		Seconds:     idx.Seconds(),
		Duration:    idx.Duration,
		Timescale:   idx.Timescale,
		Approximate: idx.Approximate,
		Bitrate:     idx.Bitrate,
		Entries:     len(idx.Entries),
	})
}

type demuxSession struct {
	s    *reframe.Session
	sink *report.Collector
}

// newSession builds a configured session over body from the server's reframe
// configuration and the request's query overrides.
func (s *Server) newSession(r *http.Request, body []byte) (*demuxSession, float64, error) {
	opts, err := reframe.OptionsFromConfig(s.config.Reframe)
	if err != nil {
		return nil, 0, errors.WrapInternalError(err, "invalid reframe configuration")
	}
	opts.Logger = logger.NewLogrusAdapter(logger.FromContext(r.Context()))
	opts.IndexStore = s.store

	q := r.URL.Query()
	if v := q.Get("fps"); v != "" {
		fps, err := types.ParseRational(v)
		if err != nil {
			return nil, 0, errors.NewValidationError("invalid fps").WithCode("fps").
				WithDetails(map[string]interface{}{"value": v})
		}
		opts.FPS = fps
	}
	var start float64
	if v := q.Get("start"); v != "" {
		start, err = strconv.ParseFloat(v, 64)
		if err != nil || start < 0 {
			return nil, 0, errors.NewValidationError("invalid start").WithCode("start").
				WithDetails(map[string]interface{}{"value": v})
		}
	}

	desc := reframe.InputDescriptor{
		Source:     bytes.NewReader(body),
		SourceSize: int64(len(body)),
		CacheKey:   q.Get("key"),
	}
	if v := q.Get("codec"); v != "" {
		desc.Codec = types.ParseCodecType(v)
		if desc.Codec == types.CodecUnknown {
			return nil, 0, errors.NewValidationError("unknown codec").WithCode("codec").
				WithDetails(map[string]interface{}{"value": v})
		}
	}

	sink := &report.Collector{MaxUnits: maxReportedUnits}
	session := reframe.New(sink, opts)
	if err := session.Configure(desc); err != nil {
		session.Close()
		return nil, 0, errors.Wrap(err, errors.ErrorTypeValidation, "invalid input descriptor", http.StatusBadRequest)
	}
	return &demuxSession{s: session, sink: sink}, start, nil
}

// readBody reads the whole request body within the upload limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.config.Server.MaxUploadBytes
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewTooLargeError(limit)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to read request body", http.StatusBadRequest)
	}
	if len(body) == 0 {
		return nil, errors.NewValidationError("request body is empty")
	}
	return body, nil
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
