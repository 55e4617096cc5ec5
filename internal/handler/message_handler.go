package handler

import (
	"context"
	"net/http"

	"go-messenger/internal/model"
	"go-messenger/internal/service"
	"go-messenger/internal/trust"
	"go-messenger/pkg/apierror"
)

type messageService interface {
	Send(ctx context.Context, senderID int64, receiverID int64, content string) (model.Message, error)
	Conversation(ctx context.Context, userID int64, otherUserID int64, page int, size int) (model.Conversation, *model.Meta, error)
	Conversations(ctx context.Context, userID int64) ([]model.ConversationSummary, error)
	History(ctx context.Context, userID int64, limit int) ([]model.Message, error)
}

type MessageHandler struct {
	service messageService
}

func NewMessageHandler(service messageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	principal, ok := trust.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.SendMessageRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.ReceiverID == 0 {
		writeError(w, apierror.BadRequest("receiver id is required", "receiverId"))
		return
	}

	msg, err := h.service.Send(r.Context(), principal.UserID, payload.ReceiverID, payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, msg, nil)
}

func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	principal, ok := trust.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	otherUserID, err := userIDParam(r, "otherUserID")
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	page := parseIntOrDefault(query.Get("page"), 1)
	size := parseIntOrDefault(query.Get("size"), service.DefaultPageSize)

	conv, meta, err := h.service.Conversation(r.Context(), principal.UserID, otherUserID, page, size)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, conv, meta)
}

func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	principal, ok := trust.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	summaries, err := h.service.Conversations(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, summaries, nil)
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	principal, ok := trust.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	limit := parseIntOrDefault(r.URL.Query().Get("limit"), service.DefaultHistoryLimit)

	history, err := h.service.History(r.Context(), principal.UserID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, history, nil)
}
