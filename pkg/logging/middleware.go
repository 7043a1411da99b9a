package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in both directions
const RequestIDHeader = "X-Request-ID"

// HTTPMiddleware assigns a request id and logs each HTTP request
func HTTPMiddleware(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)
			r = r.WithContext(ContextWithRequestID(r.Context(), requestID))

			reqLogger := logger.WithFields(
				String("request_id", requestID),
				String("method", r.Method),
				String("path", r.URL.Path),
			)
			reqLogger.Debug("HTTP request started", String("remote_addr", r.RemoteAddr))

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rw, r)

			reqLogger.Info("HTTP request completed",
				Int("status", rw.statusCode),
				Int("bytes", rw.bytesWritten),
				Duration("duration", time.Since(start)),
			)
		})
	}
}

// responseWriter captures status and size. It forwards Flush so SSE
// responses keep streaming through the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
