package apiserver

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func TestTimingMiddleware_StampsV1Routes(t *testing.T) {
	s := &Server{}
	handler := s.timingMiddleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/abc", nil))

	raw := rec.Header().Get("X-Request-Time-Ms")
	require.NotEmpty(t, raw)
	ms, err := strconv.Atoi(raw)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, 0)
}

func TestTimingMiddleware_SkipsNonAPIRoutes(t *testing.T) {
	s := &Server{}
	handler := s.timingMiddleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Empty(t, rec.Header().Get("X-Request-Time-Ms"))
}

func TestTimingMiddleware_StampsImplicitHeader(t *testing.T) {
	s := &Server{}
	// A handler that writes without calling WriteHeader first.
	handler := s.timingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	assert.NotEmpty(t, rec.Header().Get("X-Request-Time-Ms"))
}
