package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/realtime"
	"github.com/Dias221467/Chat_Server/internal/repository"
	"github.com/Dias221467/Chat_Server/pkg/apperror"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendService handles the friend-request handshake that connects two users.
type FriendService struct {
	friendRepo FriendStore
	userRepo   UserStore
	chatRepo   ChatStore
	notifier   realtime.Notifier
}

// NewFriendService creates a new FriendService.
func NewFriendService(friendRepo FriendStore, userRepo UserStore, chatRepo ChatStore, notifier realtime.Notifier) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		chatRepo:   chatRepo,
		notifier:   notifier,
	}
}

// SendFriendRequest creates a pending request from sender to receiver. It fails with
// Conflict while a request between the two is pending, in either direction, or when the
// two already share a direct chat.
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID, receiverID primitive.ObjectID) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, apperror.BadRequest("cannot send a friend request to yourself")
	}

	sender, err := s.userRepo.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if _, err := s.userRepo.GetUserByID(ctx, receiverID); err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	if _, err := s.chatRepo.GetDirectChat(ctx, models.PairKey(senderID, receiverID)); err == nil {
		return nil, apperror.Conflict("you are already friends")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal(err)
	}

	if _, err := s.friendRepo.FindPendingBetween(ctx, senderID, receiverID); err == nil {
		return nil, apperror.Conflict("a friend request between you is already pending")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal(err)
	}

	request, err := s.friendRepo.CreateRequest(ctx, &models.FriendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent request for the same pair won the unique index.
		return nil, apperror.Conflict("a friend request between you is already pending")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	s.notifier.Emit(ctx, models.EventNewRequest, []primitive.ObjectID{receiverID}, models.IncomingRequest{
		ID:     request.ID,
		Sender: sender.Public(),
	})

	logrus.WithFields(logrus.Fields{
		"senderID":   senderID.Hex(),
		"receiverID": receiverID.Hex(),
	}).Info("Friend request sent")
	return request, nil
}

// GetPendingRequests fetches all pending requests for the receiver, enriched with sender profiles.
func (s *FriendService) GetPendingRequests(ctx context.Context, receiverID primitive.ObjectID) ([]models.IncomingRequest, error) {
	requests, err := s.friendRepo.GetRequestsByReceiver(ctx, receiverID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	senderIDs := lo.Map(requests, func(r models.FriendRequest, _ int) primitive.ObjectID { return r.SenderID })
	senders, err := s.userRepo.GetUsersByIDs(ctx, lo.Uniq(senderIDs))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	byID := lo.KeyBy(senders, func(u models.User) primitive.ObjectID { return u.ID })

	incoming := make([]models.IncomingRequest, 0, len(requests))
	for _, r := range requests {
		sender, ok := byID[r.SenderID]
		if !ok {
			// Sender account no longer exists.
			continue
		}
		incoming = append(incoming, models.IncomingRequest{ID: r.ID, Sender: sender.Public()})
	}
	return incoming, nil
}

// RespondToRequest resolves a request addressed to the caller. Accepting creates the direct
// chat and then removes the request; both steps are safe to replay, so a retry after a
// failure between them completes the handshake without creating a second chat.
func (s *FriendService) RespondToRequest(ctx context.Context, callerID, requestID primitive.ObjectID, accept bool) (*models.Chat, error) {
	request, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "request not found")
	}
	if request.ReceiverID != callerID {
		return nil, apperror.Unauthorized("you are not allowed to respond to this request")
	}

	if !accept {
		if err := s.friendRepo.DeleteRequest(ctx, requestID); err != nil {
			return nil, apperror.Internal(err)
		}
		logrus.WithField("requestID", requestID.Hex()).Info("Friend request declined")
		return nil, nil
	}

	users, err := s.userRepo.GetUsersByIDs(ctx, []primitive.ObjectID{request.SenderID, request.ReceiverID})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	byID := lo.KeyBy(users, func(u models.User) primitive.ObjectID { return u.ID })
	sender, ok := byID[request.SenderID]
	if !ok {
		return nil, apperror.NotFound("sender no longer exists")
	}
	receiver := byID[request.ReceiverID]

	chat, err := s.chatRepo.UpsertDirectChat(ctx, &models.Chat{
		Name:      fmt.Sprintf("%s-%s", sender.Name, receiver.Name),
		Members:   []primitive.ObjectID{request.SenderID, request.ReceiverID},
		DirectKey: models.PairKey(request.SenderID, request.ReceiverID),
	})
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("create direct chat: %w", err))
	}

	if err := s.friendRepo.DeleteRequest(ctx, requestID); err != nil {
		// The chat exists; replaying the accept finishes the job.
		logrus.WithError(err).WithField("requestID", requestID.Hex()).Error("Direct chat created but request not removed")
		return nil, apperror.Internal(fmt.Errorf("remove accepted request: %w", err))
	}

	s.notifier.Emit(ctx, models.EventRefetchChats, chat.Members, nil)
	logrus.WithFields(logrus.Fields{
		"requestID": requestID.Hex(),
		"chatID":    chat.ID.Hex(),
	}).Info("Friend request accepted")
	return chat, nil
}

// GetFriends lists the counterpart of every direct chat of the user. With chatID set,
// friends already in that chat are left out.
func (s *FriendService) GetFriends(ctx context.Context, userID primitive.ObjectID, chatID *primitive.ObjectID) ([]models.PublicUser, error) {
	chats, err := s.chatRepo.GetChatsByMember(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	var friendIDs []primitive.ObjectID
	for _, chat := range chats {
		if chat.IsGroup {
			continue
		}
		friendIDs = append(friendIDs, lo.Without(chat.Members, userID)...)
	}

	if chatID != nil {
		chat, err := s.chatRepo.GetChatByID(ctx, *chatID)
		if err != nil || chat.DeletingAt != nil {
			return nil, notFoundOr(err, "chat not found")
		}
		friendIDs = lo.Without(friendIDs, chat.Members...)
	}

	friendIDs = lo.Uniq(friendIDs)
	if len(friendIDs) == 0 {
		return []models.PublicUser{}, nil
	}

	users, err := s.userRepo.GetUsersByIDs(ctx, friendIDs)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return lo.Map(users, func(u models.User, _ int) models.PublicUser { return u.Public() }), nil
}

// notFoundOr maps repository.ErrNotFound (or a nil err) to a NotFound with msg and
// anything else to Internal.
func notFoundOr(err error, msg string) error {
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return apperror.Internal(err)
}
