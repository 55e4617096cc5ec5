package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go-messenger/internal/model"
	"go-messenger/internal/trust"
)

type userInfoSource interface {
	UserInfo(ctx context.Context, userID int64) (model.UserInfo, error)
}

type GatewayHandler struct {
	users userInfoSource
}

func NewGatewayHandler(users userInfoSource) *GatewayHandler {
	return &GatewayHandler{users: users}
}

// Me returns the caller's profile from the login service, or just the token
// principal when the login service cannot answer.
func (h *GatewayHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := trust.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	info, err := h.users.UserInfo(r.Context(), principal.UserID)
	switch {
	case err == nil:
		writeSuccess(w, http.StatusOK, info, nil)
	case errors.Is(err, model.ErrUserNotFound):
		writeError(w, err)
	default:
		slog.Warn("login service unavailable for profile lookup; answering from token", "user_id", principal.UserID, "error", err)
		writeSuccess(w, http.StatusOK, model.UserInfo{ID: principal.UserID, Username: principal.Username}, nil)
	}
}
