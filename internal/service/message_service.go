package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go-messenger/internal/model"
	"go-messenger/pkg/apierror"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

type messageStore interface {
	Create(ctx context.Context, m model.Message) (model.Message, error)
	Between(ctx context.Context, userA int64, userB int64, limit int, offset int) ([]model.Message, int64, error)
	ConversationPartners(ctx context.Context, userID int64) ([]int64, error)
	History(ctx context.Context, userID int64, limit int) ([]model.Message, error)
}

type userDirectory interface {
	Exists(ctx context.Context, userID int64) bool
	ValidatePair(ctx context.Context, senderID int64, receiverID int64) bool
	Usernames(ctx context.Context, userIDs []int64) map[int64]string
}

type MessageService struct {
	messages messageStore
	users    userDirectory
	now      func() time.Time
}

func NewMessageService(messages messageStore, users userDirectory) *MessageService {
	return &MessageService{messages: messages, users: users, now: time.Now}
}

func (s *MessageService) Send(ctx context.Context, senderID int64, receiverID int64, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, model.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > model.MaxMessageLength {
		return model.Message{}, model.ErrContentTooLong
	}

	if !s.users.ValidatePair(ctx, senderID, receiverID) {
		return model.Message{}, model.ErrInvalidRecipient
	}

	msg, err := s.messages.Create(ctx, model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return model.Message{}, err
	}

	sent := []model.Message{msg}
	s.attachUsernames(ctx, sent)
	slog.Info("message sent", "message_id", msg.ID, "sender_id", senderID, "receiver_id", receiverID)

	return sent[0], nil
}

// Conversation pages are 1-based, newest first.
func (s *MessageService) Conversation(ctx context.Context, userID int64, otherUserID int64, page int, size int) (model.Conversation, *model.Meta, error) {
	if !s.users.ValidatePair(ctx, userID, otherUserID) {
		return model.Conversation{}, nil, model.ErrInvalidRecipient
	}

	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page > math.MaxInt32/size {
		return model.Conversation{}, nil, apierror.BadRequest("page is out of range", "page")
	}

	messages, total, err := s.messages.Between(ctx, userID, otherUserID, size, (page-1)*size)
	if err != nil {
		return model.Conversation{}, nil, err
	}

	names := s.attachUsernames(ctx, messages)
	if messages == nil {
		messages = []model.Message{}
	}

	return model.Conversation{
		OtherUserID:   otherUserID,
		OtherUsername: names[otherUserID],
		TotalMessages: total,
		Messages:      messages,
	}, model.NewMeta(page, size, total), nil
}

func (s *MessageService) Conversations(ctx context.Context, userID int64) ([]model.ConversationSummary, error) {
	if !s.users.Exists(ctx, userID) {
		return nil, model.ErrUserNotFound
	}

	partners, err := s.messages.ConversationPartners(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ConversationSummary, 0, len(partners))
	if len(partners) == 0 {
		return summaries, nil
	}

	names := s.users.Usernames(ctx, partners)
	for _, partnerID := range partners {
		latest, total, err := s.messages.Between(ctx, userID, partnerID, 1, 0)
		if err != nil {
			return nil, err
		}
		if len(latest) == 0 {
			continue
		}

		summaries = append(summaries, model.ConversationSummary{
			OtherUserID:     partnerID,
			OtherUsername:   names[partnerID],
			LastMessage:     latest[0].Content,
			LastMessageTime: latest[0].CreatedAt,
			LastSenderID:    latest[0].SenderID,
			TotalMessages:   total,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTime.After(summaries[j].LastMessageTime)
	})

	slog.Debug("conversations listed", "user_id", userID, "count", len(summaries))
	return summaries, nil
}

func (s *MessageService) History(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	if !s.users.Exists(ctx, userID) {
		return nil, model.ErrUserNotFound
	}

	if limit < 1 {
		limit = 1
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	messages, err := s.messages.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	s.attachUsernames(ctx, messages)
	if messages == nil {
		messages = []model.Message{}
	}

	return messages, nil
}

func (s *MessageService) attachUsernames(ctx context.Context, messages []model.Message) map[int64]string {
	ids := make([]int64, 0, 2)
	for _, m := range messages {
		ids = append(ids, m.SenderID, m.ReceiverID)
	}
	if len(ids) == 0 {
		return map[int64]string{}
	}

	names := s.users.Usernames(ctx, ids)
	for i := range messages {
		messages[i].SenderUsername = names[messages[i].SenderID]
		messages[i].ReceiverUsername = names[messages[i].ReceiverID]
	}

	return names
}
