package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Membership bounds for group chats.
const (
	MaxMembers           = 30
	MinGroupMembers      = 3
	MinMembersAfterLeave = 2
)

// Chat is either a two-member direct chat or a group chat with a creator.
type Chat struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	IsGroup   bool                 `bson:"group_chat" json:"group_chat"`
	Members   []primitive.ObjectID `bson:"members" json:"members"`
	Creator   *primitive.ObjectID  `bson:"creator" json:"creator"`
	DirectKey string               `bson:"direct_key,omitempty" json:"-"`
	Version   int64                `bson:"version" json:"-"`
	// DeletingAt is set once a delete has started; the chat is then only visible to the cleanup.
	DeletingAt *time.Time `bson:"deleting_at,omitempty" json:"-"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID belongs to the chat.
func (c *Chat) HasMember(userID primitive.ObjectID) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsCreator reports whether userID administers the group.
func (c *Chat) IsCreator(userID primitive.ObjectID) bool {
	return c.Creator != nil && *c.Creator == userID
}

// ChatSummary is how a chat appears in a member's chat list.
type ChatSummary struct {
	ID      primitive.ObjectID   `json:"id"`
	IsGroup bool                 `json:"group_chat"`
	Name    string               `json:"name"`
	Avatars []string             `json:"avatar"`
	Members []primitive.ObjectID `json:"members"`
}

// GroupSummary is a group listed for its creator.
type GroupSummary struct {
	ID      primitive.ObjectID `json:"id"`
	IsGroup bool               `json:"group_chat"`
	Name    string             `json:"name"`
	Avatars []string           `json:"avatar"`
}

// ChatDetails is a chat with its members expanded.
type ChatDetails struct {
	ID      primitive.ObjectID  `json:"id"`
	Name    string              `json:"name"`
	IsGroup bool                `json:"group_chat"`
	Creator *primitive.ObjectID `json:"creator"`
	Members []PublicUser        `json:"members"`
}
