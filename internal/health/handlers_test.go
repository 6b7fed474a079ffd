package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/pkg/version"
)

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    *mockChecker
		wantStatus Status
		wantCode   int
	}{
		{"ok", &mockChecker{name: "a"}, StatusOK, http.StatusOK},
		{"degraded", &mockChecker{name: "a", err: ErrDegraded}, StatusDegraded, http.StatusOK},
		{"down", &mockChecker{name: "a", err: assert.AnError}, StatusDown, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			m.Register(tt.checker)
			h := NewHandler(m)

			rr := httptest.NewRecorder()
			h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache, no-store, must-revalidate", rr.Header().Get("Cache-Control"))

			var resp Response
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, version.Version, resp.Version)
			assert.NotEmpty(t, resp.Uptime)
			assert.Contains(t, resp.Checks, "a")
		})
	}
}

func TestHandleReadyUsesLastResults(t *testing.T) {
	m := newTestManager()
	m.Register(&mockChecker{name: "a"})
	h := NewHandler(m)

	rr := httptest.NewRecorder()
	h.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	m.RunChecks(t.Context())
	rr = httptest.NewRecorder()
	h.HandleReady(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleLive(t *testing.T) {
	h := NewHandler(newTestManager())
	rr := httptest.NewRecorder()
	h.HandleLive(rr, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"alive"`)
}
