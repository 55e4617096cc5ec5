package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	service string
	db      healthChecker
}

// NewHealthHandler reports the service as up; when db is non-nil its ping
// decides between "UP" and a 503 "DOWN".
func NewHealthHandler(service string, db healthChecker) *HealthHandler {
	return &HealthHandler{service: service, db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"service": h.service, "status": "UP"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.Health(ctx); err != nil {
			slog.Warn("health check failed", "service", h.service, "error", err)
			body["status"] = "DOWN"
			writeSuccess(w, http.StatusServiceUnavailable, body, nil)
			return
		}
	}

	writeSuccess(w, http.StatusOK, body, nil)
}
