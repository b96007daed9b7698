package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxAttachments = 5

// Attachment references an object held by the blob store.
type Attachment struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
	Kind     string `bson:"kind" json:"kind"` // "image", "video", "audio", "file"
}

type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID      primitive.ObjectID `bson:"chat_id" json:"chat_id"`
	SenderID    primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	Content     string             `bson:"content" json:"content"`
	Attachments []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`

	// Sender is filled in when serving history.
	Sender *PublicUser `bson:"-" json:"sender,omitempty"`
}

// MessagePage is one page of a chat's history in chronological order.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	TotalPages int64     `json:"total_pages"`
}
