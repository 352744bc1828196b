package apiserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/moolen/atlas/internal/api/response"
)

// corsMiddleware adds CORS headers to allow browser access
// For local development only - allows all origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// timingMiddleware reports server-side processing time on /v1 routes in
// an X-Request-Time-Ms response header.
func (s *Server) timingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1") {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(&timedWriter{ResponseWriter: w, started: time.Now()}, r)
	})
}

// timedWriter stamps the timing header right before the first byte of
// the response, the last moment a header can still be written.
type timedWriter struct {
	http.ResponseWriter
	started     time.Time
	wroteHeader bool
}

func (t *timedWriter) WriteHeader(code int) {
	if !t.wroteHeader {
		t.wroteHeader = true
		t.Header().Set("X-Request-Time-Ms",
			strconv.FormatInt(time.Since(t.started).Milliseconds(), 10))
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *timedWriter) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(b)
}

// concurrencyMiddleware bounds the number of in-flight requests; the
// rest are rejected with 429 instead of queueing.
func (s *Server) concurrencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.semaphore <- struct{}{}:
			defer func() { <-s.semaphore }()
			next.ServeHTTP(w, r)
		default:
			response.WriteError(w, http.StatusTooManyRequests, "TOO_MANY_REQUESTS",
				"Server is at capacity, retry later")
		}
	})
}
