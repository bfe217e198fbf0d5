package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"upstream", NewUpstreamError("quotes unavailable", nil), http.StatusBadGateway, TypeUpstream},
		{"wrapped storage", fmt.Errorf("cycle: %w", NewStorageError("disk full", nil)), http.StatusInternalServerError, TypeStorage},
		{"config", NewConfigError("bad interval", nil), http.StatusBadRequest, TypeValidation},
		{"untyped", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pd := ProblemFromError(tt.err, "/readyz")
			assert.Equal(t, tt.status, pd.Status)
			assert.Equal(t, tt.typ, pd.Type)
			assert.Equal(t, "/readyz", pd.Instance)
		})
	}
}

func TestProblemDetails_Render(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/nope").
		WithExtension("trace_id", "abc")

	rec := httptest.NewRecorder()
	require.NoError(t, render.Render(rec, httptest.NewRequest(http.MethodGet, "/nope", nil), pd))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["trace_id"])
	assert.Equal(t, TypeNotFound, body["type"])
	assert.NotContains(t, body, "detail")
}
