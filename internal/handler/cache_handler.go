package handler

import (
	"log/slog"
	"net/http"

	"go-messenger/internal/trust"
)

type userCache interface {
	Clear(userID int64)
	ClearAll()
}

type CacheHandler struct {
	cache userCache
}

func NewCacheHandler(cache userCache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

func (h *CacheHandler) ClearUser(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}

	h.cache.Clear(userID)
	slog.Info("user cache entry cleared", "user_id", userID, "by", actor(r))
	writeSuccess(w, http.StatusOK, map[string]any{"cleared": userID}, nil)
}

func (h *CacheHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	h.cache.ClearAll()
	slog.Info("user cache cleared", "by", actor(r))
	writeSuccess(w, http.StatusOK, map[string]any{"cleared": "all"}, nil)
}

func actor(r *http.Request) int64 {
	if p, ok := trust.PrincipalFromContext(r.Context()); ok {
		return p.UserID
	}
	return 0
}
