package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/Chat_Server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// notDeleting matches chats whose deletion has not started.
var notDeleting = bson.M{"$exists": false}

type ChatRepository struct {
	collection *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{collection: db.Collection("chats")}
}

// CreateChat inserts a new chat at version 0.
func (r *ChatRepository) CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	chat.CreatedAt = time.Now()
	chat.UpdatedAt = chat.CreatedAt
	chat.Version = 0

	result, err := r.collection.InsertOne(ctx, chat)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", translate(err))
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	chat.ID = insertedID
	return chat, nil
}

// UpsertDirectChat returns the live direct chat for chat.DirectKey, creating it from chat
// when none exists. Replaying it never creates a second chat for the same pair.
func (r *ChatRepository) UpsertDirectChat(ctx context.Context, chat *models.Chat) (*models.Chat, error) {
	now := time.Now()
	filter := bson.M{"direct_key": chat.DirectKey}
	update := bson.M{"$setOnInsert": bson.M{
		"name":       chat.Name,
		"group_chat": false,
		"members":    chat.Members,
		"creator":    nil,
		"version":    int64(0),
		"created_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.Chat
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race with a concurrent accept; the winner's chat is the one.
		return r.GetDirectChat(ctx, chat.DirectKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert direct chat: %w", translate(err))
	}
	return &out, nil
}

// GetChatByID returns the chat, including one whose deletion is in progress.
func (r *ChatRepository) GetChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", translate(err))
	}
	return &chat, nil
}

// GetDirectChat returns the live direct chat for a pair key.
func (r *ChatRepository) GetDirectChat(ctx context.Context, directKey string) (*models.Chat, error) {
	var chat models.Chat
	filter := bson.M{"direct_key": directKey, "deleting_at": notDeleting}
	if err := r.collection.FindOne(ctx, filter).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to find direct chat: %w", translate(err))
	}
	return &chat, nil
}

// GetChatsByMember lists the live chats userID belongs to.
func (r *ChatRepository) GetChatsByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	return r.find(ctx, bson.M{"members": userID, "deleting_at": notDeleting})
}

// GetGroupsByCreator lists the live groups userID administers.
func (r *ChatRepository) GetGroupsByCreator(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	return r.find(ctx, bson.M{"creator": userID, "group_chat": true, "deleting_at": notDeleting})
}

// GetStaleDeletions lists chats whose deletion started before the given time.
func (r *ChatRepository) GetStaleDeletions(ctx context.Context, before time.Time) ([]models.Chat, error) {
	return r.find(ctx, bson.M{"deleting_at": bson.M{"$lte": before}})
}

func (r *ChatRepository) find(ctx context.Context, filter bson.M) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := []models.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return chats, nil
}

// UpdateChat writes name, members and creator if the stored version still equals
// chat.Version, then bumps the version. A lost race yields ErrVersionConflict.
func (r *ChatRepository) UpdateChat(ctx context.Context, chat *models.Chat) error {
	now := time.Now()
	filter := bson.M{"_id": chat.ID, "version": chat.Version, "deleting_at": notDeleting}
	update := bson.M{
		"$set": bson.M{
			"name":       chat.Name,
			"members":    chat.Members,
			"creator":    chat.Creator,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}
	chat.Version++
	chat.UpdatedAt = now
	return nil
}

// MarkDeleting stamps the deletion start and frees the direct pair key so the two users
// can connect again. The first stamp wins; repeating it is a no-op.
func (r *ChatRepository) MarkDeleting(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id, "deleting_at": notDeleting}
	update := bson.M{
		"$set":   bson.M{"deleting_at": at},
		"$unset": bson.M{"direct_key": ""},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to mark chat for deletion: %w", err)
	}
	return nil
}

// DeleteChat removes the chat record. Deleting an absent chat is not an error.
func (r *ChatRepository) DeleteChat(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}
