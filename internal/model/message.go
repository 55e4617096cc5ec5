package model

import "time"

// MaxMessageLength bounds message content in characters.
const MaxMessageLength = 1000

type Message struct {
	ID               int64     `json:"id"`
	SenderID         int64     `json:"senderId"`
	SenderUsername   string    `json:"senderUsername,omitempty"`
	ReceiverID       int64     `json:"receiverId"`
	ReceiverUsername string    `json:"receiverUsername,omitempty"`
	Content          string    `json:"content"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Conversation struct {
	OtherUserID   int64     `json:"otherUserId"`
	OtherUsername string    `json:"otherUsername,omitempty"`
	TotalMessages int64     `json:"totalMessages"`
	Messages      []Message `json:"messages"`
}

type ConversationSummary struct {
	OtherUserID     int64     `json:"otherUserId"`
	OtherUsername   string    `json:"otherUsername,omitempty"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
	LastSenderID    int64     `json:"lastSenderId"`
	TotalMessages   int64     `json:"totalMessages"`
}
