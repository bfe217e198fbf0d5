package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optchain/internal/collector"
	"optchain/internal/services"
)

type reportSource struct {
	reports map[string]collector.CycleReport
}

func (s reportSource) Indices() []string                             { return []string{"NIFTY"} }
func (s reportSource) LastReports() map[string]collector.CycleReport { return s.reports }

func newTestRouter(reports map[string]collector.CycleReport) http.Handler {
	svc := services.NewHealthService("test", reportSource{reports: reports}, time.Minute, nil)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("rows_written_total 1\n"))
	})
	return NewRouter(RouterOptions{
		Health:  NewHealthHandler(svc, nil),
		Metrics: metrics,
	})
}

func TestRouter_Readiness(t *testing.T) {
	tests := []struct {
		name    string
		reports map[string]collector.CycleReport
		code    int
		status  string
	}{
		{"pending", map[string]collector.CycleReport{}, http.StatusServiceUnavailable, "not_ready"},
		{"ready", map[string]collector.CycleReport{"NIFTY": {Index: "NIFTY", StartedAt: time.Now()}}, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(tt.reports).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body services.HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestRouter_Endpoints(t *testing.T) {
	router := newTestRouter(nil)

	for path, want := range map[string]string{
		"/healthz": `"status":"ok"`,
		"/livez":   `"status":"alive"`,
		"/metrics": "rows_written_total",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"/errors/not-found"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
