package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go-messenger/internal/model"
	"go-messenger/internal/trust"
)

const requestIDHeader = "X-Request-ID"

const maxCapturedBody = 4096

// Logging sets the request id on the inbound headers so forwarded calls
// carry it.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
			"client_ip", trust.ClientIP(r),
		}
		if p, ok := trust.ForwardedPrincipal(r.Header); ok {
			attrs = append(attrs, "user_id", p.UserID)
		}
		if rec.status >= 400 {
			attrs = append(attrs, rec.errorAttrs()...)
		}

		slog.Log(r.Context(), levelForStatus(rec.status), "request", attrs...)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	errBody     bytes.Buffer
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.wroteHeader {
		return
	}
	rec.status = status
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	if rec.status >= 400 && rec.errBody.Len() < maxCapturedBody {
		rec.errBody.Write(b[:min(len(b), maxCapturedBody-rec.errBody.Len())])
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) errorAttrs() []any {
	if rec.errBody.Len() == 0 {
		return nil
	}

	var env model.APIResponse
	if err := json.Unmarshal(rec.errBody.Bytes(), &env); err != nil || env.Error == nil {
		return nil
	}

	attrs := []any{"error_code", env.Error.Code, "error_message", env.Error.Message}
	if env.Error.Details != "" {
		attrs = append(attrs, "error_details", env.Error.Details)
	}
	return attrs
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
