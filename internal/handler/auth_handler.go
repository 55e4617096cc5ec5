package handler

import (
	"context"
	"net/http"
	"strings"

	"go-messenger/internal/model"
	"go-messenger/pkg/apierror"
)

type authService interface {
	Login(ctx context.Context, login string, password string) (model.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (model.LoginResponse, error)
	Register(ctx context.Context, username string, email string, password string) (model.UserInfo, error)
	ValidateToken(tokenString string) model.TokenValidation
	UserExists(ctx context.Context, userID int64) (model.UserExistence, error)
	UserInfo(ctx context.Context, userID int64) (model.UserInfo, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.UsernameOrEmail, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, apierror.BadRequest("refresh token is required", "refreshToken"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var payload model.ValidateTokenRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(payload.Token) == "" {
		writeError(w, apierror.BadRequest("token is required", "token"))
		return
	}

	writeSuccess(w, http.StatusOK, h.service.ValidateToken(payload.Token), nil)
}

// ValidateUser answers 200 whether or not the user exists; only a lookup
// failure is an error.
func (h *AuthHandler) ValidateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	existence, err := h.service.UserExists(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, existence, nil)
}

func (h *AuthHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := h.service.UserInfo(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, info, nil)
}
