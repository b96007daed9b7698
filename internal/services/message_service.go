package services

import (
	"context"
	"strings"

	"github.com/Dias221467/Chat_Server/internal/blobstore"
	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/realtime"
	"github.com/Dias221467/Chat_Server/pkg/apperror"
	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PageSize is the number of messages per history page.
const PageSize = 20

// Upload is a file received for attachment.
type Upload struct {
	Name string
	Data []byte
}

// MessageService stores chat messages and serves chat history.
type MessageService struct {
	messageRepo MessageStore
	chatRepo    ChatStore
	userRepo    UserStore
	blobs       blobstore.BlobStore
	notifier    realtime.Notifier
}

// NewMessageService creates a new MessageService.
func NewMessageService(messageRepo MessageStore, chatRepo ChatStore, userRepo UserStore, blobs blobstore.BlobStore, notifier realtime.Notifier) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		blobs:       blobs,
		notifier:    notifier,
	}
}

// Append stores a message from a chat member and pushes it to the chat.
func (s *MessageService) Append(ctx context.Context, chatID, senderID primitive.ObjectID, content string, attachments []models.Attachment) (*models.Message, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, apperror.BadRequest("message content or attachments are required")
	}
	if len(attachments) > models.MaxAttachments {
		return nil, apperror.BadRequest("files can't be more than 5")
	}

	chat, err := s.memberChat(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.messageRepo.CreateMessage(ctx, &models.Message{
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		Attachments: attachments,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}

	event := models.MessageEvent{ChatID: chatID, Message: msg, Sender: models.PublicUser{ID: senderID}}
	if sender, err := s.userRepo.GetUserByID(ctx, senderID); err == nil {
		event.Sender = sender.Public()
	}
	kind := models.EventNewMessage
	if len(attachments) > 0 {
		kind = models.EventNewAttachment
	}
	s.notifier.Emit(ctx, kind, chat.Members, event)
	s.notifier.Emit(ctx, models.EventNewMessageAlert, chat.Members, models.ChatRef{ChatID: chatID})

	logrus.WithFields(logrus.Fields{
		"chatID":      chatID.Hex(),
		"senderID":    senderID.Hex(),
		"attachments": len(attachments),
	}).Debug("Message stored")
	return msg, nil
}

// SendAttachments uploads files to the blob store and posts them as one message. Uploaded
// objects are removed again when the message cannot be stored.
func (s *MessageService) SendAttachments(ctx context.Context, chatID, senderID primitive.ObjectID, files []Upload) (*models.Message, error) {
	if len(files) == 0 {
		return nil, apperror.BadRequest("please upload attachments")
	}
	if len(files) > models.MaxAttachments {
		return nil, apperror.BadRequest("files can't be more than 5")
	}
	if _, err := s.memberChat(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	attachments := make([]models.Attachment, 0, len(files))
	for _, f := range files {
		obj, err := s.blobs.Upload(ctx, f.Name, f.Data)
		if err != nil {
			s.discard(ctx, attachments)
			return nil, apperror.Internal(err)
		}
		attachments = append(attachments, models.Attachment{
			PublicID: obj.PublicID,
			URL:      obj.URL,
			Kind:     blobstore.DetectKind(f.Data),
		})
	}

	msg, err := s.Append(ctx, chatID, senderID, "", attachments)
	if err != nil {
		s.discard(ctx, attachments)
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) discard(ctx context.Context, attachments []models.Attachment) {
	if len(attachments) == 0 {
		return
	}
	ids := lo.Map(attachments, func(a models.Attachment, _ int) string { return a.PublicID })
	if err := s.blobs.DeleteMany(ctx, ids); err != nil {
		logrus.WithError(err).WithField("count", len(ids)).Warn("Failed to remove orphaned uploads")
	}
}

// Page returns one page of a chat's history, oldest message first, each message carrying
// its sender's profile. Pages are 1-based and anything below 1 reads as the first page.
func (s *MessageService) Page(ctx context.Context, chatID, callerID primitive.ObjectID, page int) (*models.MessagePage, error) {
	if _, err := s.memberChat(ctx, chatID, callerID); err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}

	total, err := s.messageRepo.CountMessages(ctx, chatID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	totalPages := (total + PageSize - 1) / PageSize
	if int64(page) > totalPages {
		return &models.MessagePage{Messages: []models.Message{}, TotalPages: totalPages}, nil
	}

	messages, err := s.messageRepo.GetMessagesPage(ctx, chatID, int64(page-1)*PageSize, PageSize)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.attachSenders(ctx, messages); err != nil {
		return nil, err
	}

	mutable.Reverse(messages)
	return &models.MessagePage{
		Messages:   messages,
		TotalPages: totalPages,
	}, nil
}

// attachSenders fills in the sender profile of every message. Senders whose account is gone
// are left empty.
func (s *MessageService) attachSenders(ctx context.Context, messages []models.Message) error {
	senderIDs := lo.Uniq(lo.Map(messages, func(m models.Message, _ int) primitive.ObjectID { return m.SenderID }))
	if len(senderIDs) == 0 {
		return nil
	}
	users, err := s.userRepo.GetUsersByIDs(ctx, senderIDs)
	if err != nil {
		return apperror.Internal(err)
	}
	byID := lo.KeyBy(users, func(u models.User) primitive.ObjectID { return u.ID })
	for i := range messages {
		if sender, ok := byID[messages[i].SenderID]; ok {
			profile := sender.Public()
			messages[i].Sender = &profile
		}
	}
	return nil
}

// memberChat loads a live chat and checks that userID belongs to it.
func (s *MessageService) memberChat(ctx context.Context, chatID, userID primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil || chat.DeletingAt != nil {
		return nil, notFoundOr(err, "chat not found")
	}
	if !chat.HasMember(userID) {
		return nil, apperror.Unauthorized("you are not a member of this chat")
	}
	return chat, nil
}
