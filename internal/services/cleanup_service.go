package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/Chat_Server/internal/blobstore"
	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CleanupService removes a chat together with everything that hangs off it.
type CleanupService struct {
	chatRepo    ChatStore
	messageRepo MessageStore
	blobs       blobstore.BlobStore
	now         func() time.Time
}

// NewCleanupService creates a new CleanupService.
func NewCleanupService(chatRepo ChatStore, messageRepo MessageStore, blobs blobstore.BlobStore) *CleanupService {
	return &CleanupService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		blobs:       blobs,
		now:         time.Now,
	}
}

// PurgeChat deletes the chat's attachments from the blob store, then its messages, then
// the chat record. Every step tolerates having run before, and the attachment ids are
// recomputed from the messages still stored, so a failed purge can simply be run again.
func (s *CleanupService) PurgeChat(ctx context.Context, chatID primitive.ObjectID) error {
	messages, err := s.messageRepo.GetMessagesWithAttachments(ctx, chatID)
	if err != nil {
		return fmt.Errorf("collect attachments: %w", err)
	}

	ids := attachmentIDs(messages)
	if len(ids) > 0 {
		if err := s.blobs.DeleteMany(ctx, ids); err != nil {
			return fmt.Errorf("delete attachments: %w", err)
		}
	}

	deleted, err := s.messageRepo.DeleteMessagesByChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.chatRepo.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"chatID":      chatID.Hex(),
		"attachments": len(ids),
		"messages":    deleted,
	}).Info("Chat purged")
	return nil
}

// ResumeStale finishes deletions that started more than grace ago and never completed.
// It returns how many chats were purged.
func (s *CleanupService) ResumeStale(ctx context.Context, grace time.Duration) (int, error) {
	chats, err := s.chatRepo.GetStaleDeletions(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, fmt.Errorf("find stale deletions: %w", err)
	}

	purged := 0
	for _, chat := range chats {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if err := s.PurgeChat(ctx, chat.ID); err != nil {
			logrus.WithError(err).WithField("chatID", chat.ID.Hex()).Warn("Failed to resume chat deletion")
			continue
		}
		purged++
	}
	return purged, nil
}

// attachmentIDs collects the distinct blob ids referenced by messages.
func attachmentIDs(messages []models.Message) []string {
	ids := lo.FlatMap(messages, func(m models.Message, _ int) []string {
		return lo.Map(m.Attachments, func(a models.Attachment, _ int) string { return a.PublicID })
	})
	return lo.Uniq(lo.Compact(ids))
}
