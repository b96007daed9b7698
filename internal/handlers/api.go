package handlers

import (
	"context"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserAPI is what the user endpoints need from the user directory.
type UserAPI interface {
	RegisterUser(ctx context.Context, in services.RegisterInput) (*models.User, string, error)
	AuthenticateUser(ctx context.Context, in services.LoginInput) (*models.User, string, error)
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SearchUsers(ctx context.Context, callerID primitive.ObjectID, name string) ([]models.PublicUser, error)
}

// FriendAPI is what the friend endpoints need from the relationship ledger.
type FriendAPI interface {
	SendFriendRequest(ctx context.Context, senderID, receiverID primitive.ObjectID) (*models.FriendRequest, error)
	GetPendingRequests(ctx context.Context, receiverID primitive.ObjectID) ([]models.IncomingRequest, error)
	RespondToRequest(ctx context.Context, callerID, requestID primitive.ObjectID, accept bool) (*models.Chat, error)
	GetFriends(ctx context.Context, userID primitive.ObjectID, chatID *primitive.ObjectID) ([]models.PublicUser, error)
}

// ChatAPI is what the chat endpoints need from the chat registry.
type ChatAPI interface {
	CreateGroup(ctx context.Context, creatorID primitive.ObjectID, name string, memberIDs []primitive.ObjectID) (*models.Chat, error)
	AddMembers(ctx context.Context, callerID, chatID primitive.ObjectID, memberIDs []primitive.ObjectID) (*models.Chat, error)
	RemoveMember(ctx context.Context, callerID, chatID, targetID primitive.ObjectID) (*models.Chat, error)
	Leave(ctx context.Context, callerID, chatID primitive.ObjectID) (*models.Chat, error)
	Rename(ctx context.Context, callerID, chatID primitive.ObjectID, name string) (*models.Chat, error)
	DeleteChat(ctx context.Context, callerID, chatID primitive.ObjectID) error
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.ChatSummary, error)
	ListMyGroups(ctx context.Context, userID primitive.ObjectID) ([]models.GroupSummary, error)
	GetChat(ctx context.Context, callerID, chatID primitive.ObjectID) (*models.Chat, error)
	GetChatDetails(ctx context.Context, callerID, chatID primitive.ObjectID) (*models.ChatDetails, error)
}

// MessageAPI is what the message endpoints and the websocket need from the message store.
type MessageAPI interface {
	Append(ctx context.Context, chatID, senderID primitive.ObjectID, content string, attachments []models.Attachment) (*models.Message, error)
	SendAttachments(ctx context.Context, chatID, senderID primitive.ObjectID, files []services.Upload) (*models.Message, error)
	Page(ctx context.Context, chatID, callerID primitive.ObjectID, page int) (*models.MessagePage, error)
}

var (
	_ UserAPI    = (*services.UserService)(nil)
	_ FriendAPI  = (*services.FriendService)(nil)
	_ ChatAPI    = (*services.ChatService)(nil)
	_ MessageAPI = (*services.MessageService)(nil)
)
