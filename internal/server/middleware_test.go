package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/internal/config"
	"github.com/zsiec/reframe/internal/errors"
)

func TestRequestIDMiddleware(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	handler := srv.requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "test-request-id")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "test-request-id", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rr := do(srv, http.MethodGet, "/version", nil)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))

	// preflight never reaches the handler or the admission gate
	rr = do(srv, http.MethodOptions, "/api/v1/demux", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, srv.admission.InUse())
}

func TestMetricsMiddleware(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	before := routeCount(t, "/version")
	do(srv, http.MethodGet, "/version", nil)
	do(srv, http.MethodGet, "/version", nil)
	assert.Equal(t, before+2, routeCount(t, "/version"))

	// probes are not counted
	before = routeCount(t, "/live")
	do(srv, http.MethodGet, "/live", nil)
	assert.Equal(t, before, routeCount(t, "/live"))
}

func routeCount(t *testing.T, route string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "reframe_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" && l.GetValue() == route {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestRouteName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whatever", nil)
	assert.Equal(t, "unmatched", routeName(req))
}

func TestAdmissionMiddleware(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		srv := newTestServer(t, nil, func(c *config.Config) {
			c.Server.DemuxRateLimit = 0.001
			c.Server.DemuxBurst = 1
		})
		data, _ := seekClip()

		assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/v1/demux", data).Code)
		rr := do(srv, http.MethodPost, "/api/v1/demux", data)
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, errors.ErrorTypeRateLimit, decodeError(t, rr.Body.Bytes()).Error.Type)

		// probing is not admission controlled
		assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/v1/probe", data).Code)
	})

	t.Run("sessions busy", func(t *testing.T) {
		srv := newTestServer(t, nil, func(c *config.Config) { c.Server.MaxSessions = 1 })
		require.True(t, srv.admission.TryAcquire())

		rr := do(srv, http.MethodPost, "/api/v1/demux", []byte{1})
		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		resp := decodeError(t, rr.Body.Bytes())
		assert.EqualValues(t, 1, resp.Error.Details["limit"])

		srv.admission.Release()
		data, _ := seekClip()
		assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/api/v1/demux", data).Code)
		assert.Zero(t, srv.admission.InUse())
	})
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	var rr *httptest.ResponseRecorder
	assert.NotPanics(t, func() {
		rr = do(srv, http.MethodGet, "/boom", nil)
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
