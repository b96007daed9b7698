package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Event kinds pushed to connected clients.
const (
	EventNewRequest      = "NEW_REQUEST"
	EventAlert           = "ALERT"
	EventRefetchChats    = "REFETCH_CHATS"
	EventNewMessage      = "NEW_MESSAGE"
	EventNewMessageAlert = "NEW_MESSAGE_ALERT"
	EventNewAttachment   = "NEW_ATTACHMENT"
)

// Alert is a human-readable membership or name change in a chat.
type Alert struct {
	ChatID  primitive.ObjectID `json:"chat_id"`
	Message string             `json:"message"`
}

// MessageEvent carries a freshly stored message with its sender's profile.
type MessageEvent struct {
	ChatID  primitive.ObjectID `json:"chat_id"`
	Message *Message           `json:"message"`
	Sender  PublicUser         `json:"sender"`
}

// ChatRef names a chat without any content, for unread badges.
type ChatRef struct {
	ChatID primitive.ObjectID `json:"chat_id"`
}
