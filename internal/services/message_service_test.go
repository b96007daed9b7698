package services

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/Dias221467/Chat_Server/internal/blobstore"
	"github.com/Dias221467/Chat_Server/internal/mocks"
	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/pkg/apperror"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestMessageService_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("should store a text message and push both alerts to members", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		notifier := mocks.NewMockNotifier(gomock.NewController(t))
		gomock.InOrder(
			notifier.EXPECT().Emit(gomock.Any(), models.EventNewMessage, group.Members, gomock.Any()).
				Do(func(_ context.Context, _ string, _ []primitive.ObjectID, payload any) {
					event := payload.(models.MessageEvent)
					req.Equal("User01", event.Sender.Name)
					req.Equal("hello", event.Message.Content)
				}),
			notifier.EXPECT().Emit(gomock.Any(), models.EventNewMessageAlert, group.Members, models.ChatRef{ChatID: group.ID}),
		)
		svc := NewMessageService(store, store, store, nil, notifier)

		msg, err := svc.Append(ctx, group.ID, users[1].ID, "hello", nil)

		req.NoError(err)
		req.False(msg.ID.IsZero())
		req.Len(store.messagesOf(group.ID), 1)
	})

	t.Run("should announce attachments as such", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		notifier := mocks.NewMockNotifier(gomock.NewController(t))
		notifier.EXPECT().Emit(gomock.Any(), models.EventNewAttachment, gomock.Any(), gomock.Any())
		notifier.EXPECT().Emit(gomock.Any(), models.EventNewMessageAlert, gomock.Any(), gomock.Any())
		svc := NewMessageService(store, store, store, nil, notifier)

		_, err := svc.Append(ctx, group.ID, users[1].ID, "", []models.Attachment{{PublicID: "p", URL: "u", Kind: blobstore.KindImage}})

		req.NoError(err)
	})

	t.Run("should reject empty messages and too many attachments", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		svc := NewMessageService(store, store, store, nil, quietNotifier(t))
		six := make([]models.Attachment, models.MaxAttachments+1)

		_, err := svc.Append(ctx, group.ID, users[1].ID, "  ", nil)
		req.True(apperror.Is(err, apperror.KindBadRequest))

		_, err = svc.Append(ctx, group.ID, users[1].ID, "many", six)
		req.True(apperror.Is(err, apperror.KindBadRequest))
		req.Empty(store.messagesOf(group.ID))
	})

	t.Run("should refuse outsiders and missing chats", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, _ := seedGroup(store, 3)
		svc := NewMessageService(store, store, store, nil, quietNotifier(t))

		_, err := svc.Append(ctx, group.ID, store.addUser("Mallory").ID, "hi", nil)
		req.True(apperror.Is(err, apperror.KindUnauthorized))

		_, err = svc.Append(ctx, primitive.NewObjectID(), group.Members[0], "hi", nil)
		req.True(apperror.Is(err, apperror.KindNotFound))
	})
}

func TestMessageService_Page(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	group, users := seedGroup(store, 3)
	for i := 1; i <= 45; i++ {
		_, err := store.CreateMessage(ctx, &models.Message{ChatID: group.ID, SenderID: users[0].ID, Content: fmt.Sprintf("m%02d", i)})
		require.NoError(t, err)
	}
	svc := NewMessageService(store, store, store, nil, quietNotifier(t))
	contents := func(p *models.MessagePage) []string {
		return lo.Map(p.Messages, func(m models.Message, _ int) string { return m.Content })
	}

	t.Run("should return the newest page oldest first", func(t *testing.T) {
		req := require.New(t)

		page, err := svc.Page(ctx, group.ID, users[1].ID, 1)

		req.NoError(err)
		req.Equal(int64(3), page.TotalPages)
		req.Len(page.Messages, 20)
		req.Equal("m26", page.Messages[0].Content)
		req.Equal("m45", page.Messages[19].Content)
	})

	t.Run("should return the remainder on the last page and nothing after it", func(t *testing.T) {
		req := require.New(t)

		page, err := svc.Page(ctx, group.ID, users[1].ID, 3)
		req.NoError(err)
		req.Equal([]string{"m01", "m02", "m03", "m04", "m05"}, contents(page))

		page, err = svc.Page(ctx, group.ID, users[1].ID, 4)
		req.NoError(err)
		req.Empty(page.Messages)
		req.Equal(int64(3), page.TotalPages)
	})

	t.Run("should return an empty page for a page number far past the end", func(t *testing.T) {
		req := require.New(t)

		page, err := svc.Page(ctx, group.ID, users[1].ID, math.MaxInt64/PageSize+2)

		req.NoError(err)
		req.Empty(page.Messages)
		req.Equal(int64(3), page.TotalPages)
	})

	t.Run("should include the sender profile with every message", func(t *testing.T) {
		req := require.New(t)

		page, err := svc.Page(ctx, group.ID, users[1].ID, 2)

		req.NoError(err)
		req.Len(page.Messages, 20)
		for _, msg := range page.Messages {
			req.NotNil(msg.Sender)
			req.Equal(users[0].ID, msg.Sender.ID)
			req.Equal(users[0].Name, msg.Sender.Name)
		}
	})

	t.Run("should treat non-positive pages as the first", func(t *testing.T) {
		req := require.New(t)

		first, err := svc.Page(ctx, group.ID, users[1].ID, 1)
		req.NoError(err)
		zero, err := svc.Page(ctx, group.ID, users[1].ID, 0)
		req.NoError(err)
		negative, err := svc.Page(ctx, group.ID, users[1].ID, -3)
		req.NoError(err)

		req.Equal(contents(first), contents(zero))
		req.Equal(contents(first), contents(negative))
	})

	t.Run("should refuse outsiders", func(t *testing.T) {
		req := require.New(t)

		_, err := svc.Page(ctx, group.ID, primitive.NewObjectID(), 1)

		req.True(apperror.Is(err, apperror.KindUnauthorized))
	})
}

func TestMessageService_SendAttachments(t *testing.T) {
	ctx := context.Background()

	t.Run("should upload every file and post them as one message", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		blobs := mocks.NewMockBlobStore(gomock.NewController(t))
		blobs.EXPECT().Upload(gomock.Any(), "cat.png", pngHeader).Return(blobstore.Object{PublicID: "1", URL: "https://cdn/1"}, nil)
		blobs.EXPECT().Upload(gomock.Any(), "notes.txt", []byte("plain text")).Return(blobstore.Object{PublicID: "2", URL: "https://cdn/2"}, nil)
		svc := NewMessageService(store, store, store, blobs, quietNotifier(t))

		msg, err := svc.SendAttachments(ctx, group.ID, users[2].ID, []Upload{
			{Name: "cat.png", Data: pngHeader},
			{Name: "notes.txt", Data: []byte("plain text")},
		})

		req.NoError(err)
		req.Empty(msg.Content)
		req.Equal([]models.Attachment{
			{PublicID: "1", URL: "https://cdn/1", Kind: blobstore.KindImage},
			{PublicID: "2", URL: "https://cdn/2", Kind: blobstore.KindFile},
		}, msg.Attachments)
	})

	t.Run("should remove uploads when the message cannot be stored", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		store.failNext("CreateMessage", errStoreDown)
		blobs := mocks.NewMockBlobStore(gomock.NewController(t))
		blobs.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(blobstore.Object{PublicID: "1", URL: "u"}, nil)
		blobs.EXPECT().DeleteMany(gomock.Any(), []string{"1"}).Return(nil)
		svc := NewMessageService(store, store, store, blobs, quietNotifier(t))

		_, err := svc.SendAttachments(ctx, group.ID, users[2].ID, []Upload{{Name: "a.png", Data: pngHeader}})

		req.True(apperror.Is(err, apperror.KindInternal))
	})

	t.Run("should remove earlier uploads when a later one fails", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		blobs := mocks.NewMockBlobStore(gomock.NewController(t))
		gomock.InOrder(
			blobs.EXPECT().Upload(gomock.Any(), "a.png", gomock.Any()).Return(blobstore.Object{PublicID: "1"}, nil),
			blobs.EXPECT().Upload(gomock.Any(), "b.png", gomock.Any()).Return(blobstore.Object{}, errStoreDown),
			blobs.EXPECT().DeleteMany(gomock.Any(), []string{"1"}).Return(nil),
		)
		svc := NewMessageService(store, store, store, blobs, quietNotifier(t))

		_, err := svc.SendAttachments(ctx, group.ID, users[2].ID, []Upload{{Name: "a.png", Data: pngHeader}, {Name: "b.png", Data: pngHeader}})

		req.True(apperror.Is(err, apperror.KindInternal))
		req.Empty(store.messagesOf(group.ID))
	})

	t.Run("should validate the file count before touching the blob store", func(t *testing.T) {
		req := require.New(t)
		store := newMemoryStore()
		group, users := seedGroup(store, 3)
		svc := NewMessageService(store, store, store, mocks.NewMockBlobStore(gomock.NewController(t)), quietNotifier(t))

		_, err := svc.SendAttachments(ctx, group.ID, users[2].ID, nil)
		req.True(apperror.Is(err, apperror.KindBadRequest))

		_, err = svc.SendAttachments(ctx, group.ID, users[2].ID, make([]Upload, 6))
		req.True(apperror.Is(err, apperror.KindBadRequest))

		_, err = svc.SendAttachments(ctx, group.ID, primitive.NewObjectID(), []Upload{{Name: "a", Data: pngHeader}})
		req.True(apperror.Is(err, apperror.KindUnauthorized))
	})
}
