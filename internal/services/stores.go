package services

import (
	"context"
	"time"

	"github.com/Dias221467/Chat_Server/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserStore is the persistence the user directory needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByLogin(ctx context.Context, email, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	SearchByName(ctx context.Context, name string, exclude []primitive.ObjectID) ([]models.User, error)
}

// FriendStore is the persistence behind the relationship ledger.
type FriendStore interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error)
	FindPendingBetween(ctx context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error)
	GetRequestByID(ctx context.Context, id primitive.ObjectID) (*models.FriendRequest, error)
	GetRequestsByReceiver(ctx context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error)
	DeleteRequest(ctx context.Context, id primitive.ObjectID) error
}

// ChatStore is the persistence behind the chat registry.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	UpsertDirectChat(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	GetChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error)
	GetDirectChat(ctx context.Context, directKey string) (*models.Chat, error)
	GetChatsByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error)
	GetGroupsByCreator(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error)
	GetStaleDeletions(ctx context.Context, before time.Time) ([]models.Chat, error)
	UpdateChat(ctx context.Context, chat *models.Chat) error
	MarkDeleting(ctx context.Context, id primitive.ObjectID, at time.Time) error
	DeleteChat(ctx context.Context, id primitive.ObjectID) error
}

// MessageStore is the persistence behind chat history.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetMessagesPage(ctx context.Context, chatID primitive.ObjectID, skip, limit int64) ([]models.Message, error)
	CountMessages(ctx context.Context, chatID primitive.ObjectID) (int64, error)
	GetMessagesWithAttachments(ctx context.Context, chatID primitive.ObjectID) ([]models.Message, error)
	DeleteMessagesByChat(ctx context.Context, chatID primitive.ObjectID) (int64, error)
}
