package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/realtime"
	"github.com/Dias221467/Chat_Server/internal/repository"
	"github.com/Dias221467/Chat_Server/pkg/apperror"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxUpdateAttempts bounds how often a chat mutation is replayed after losing a version race.
const maxUpdateAttempts = 5

// errUnchanged tells mutate that apply left the chat as it was.
var errUnchanged = errors.New("chat unchanged")

// ChatService is the chat registry: groups, their rosters and chat deletion.
type ChatService struct {
	chatRepo ChatStore
	userRepo UserStore
	cleanup  *CleanupService
	notifier realtime.Notifier

	randIntn func(n int) int
	now      func() time.Time
}

// NewChatService creates a new ChatService.
func NewChatService(chatRepo ChatStore, userRepo UserStore, cleanup *CleanupService, notifier realtime.Notifier) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
		cleanup:  cleanup,
		notifier: notifier,
		randIntn: rand.Intn,
		now:      time.Now,
	}
}

// CreateGroup creates a group administered by creatorID. The roster is memberIDs plus the
// creator, deduplicated, and must hold between 3 and 30 existing users.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID primitive.ObjectID, name string, memberIDs []primitive.ObjectID) (*models.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.BadRequest("group name is required")
	}

	members := lo.Uniq(append([]primitive.ObjectID{creatorID}, memberIDs...))
	if len(members) < models.MinGroupMembers {
		return nil, apperror.BadRequest(fmt.Sprintf("a group needs at least %d members", models.MinGroupMembers))
	}
	if len(members) > models.MaxMembers {
		return nil, apperror.BadRequest(fmt.Sprintf("a group can have at most %d members", models.MaxMembers))
	}
	if _, err := s.existingUsers(ctx, members); err != nil {
		return nil, err
	}

	creator := creatorID
	chat, err := s.chatRepo.CreateChat(ctx, &models.Chat{
		Name:    name,
		IsGroup: true,
		Members: members,
		Creator: &creator,
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}

	s.notifier.Emit(ctx, models.EventAlert, chat.Members, models.Alert{ChatID: chat.ID, Message: fmt.Sprintf("Welcome to %s group", chat.Name)})
	s.notifier.Emit(ctx, models.EventRefetchChats, chat.Members, nil)
	logrus.WithFields(logrus.Fields{
		"chatID":  chat.ID.Hex(),
		"members": len(chat.Members),
	}).Info("Group created")
	return chat, nil
}

// AddMembers puts new users into a group. Ids already in the group are ignored; if none
// are left the call succeeds without changing anything.
func (s *ChatService) AddMembers(ctx context.Context, callerID, chatID primitive.ObjectID, memberIDs []primitive.ObjectID) (*models.Chat, error) {
	var added []models.User
	chat, err := s.mutate(ctx, chatID, func(chat *models.Chat) error {
		added = nil
		if err := adminGuard(chat, callerID); err != nil {
			return err
		}
		if len(memberIDs) == 0 {
			return apperror.BadRequest("please provide members")
		}

		fresh := lo.Uniq(lo.Without(memberIDs, chat.Members...))
		if len(fresh) == 0 {
			return errUnchanged
		}
		if len(chat.Members)+len(fresh) > models.MaxMembers {
			return apperror.BadRequest(fmt.Sprintf("member limit of %d reached", models.MaxMembers))
		}
		users, err := s.existingUsers(ctx, fresh)
		if err != nil {
			return err
		}
		added = users
		chat.Members = append(chat.Members, fresh...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return chat, nil
	}

	names := lo.Map(added, func(u models.User, _ int) string { return u.Name })
	s.notifier.Emit(ctx, models.EventAlert, chat.Members, models.Alert{
		ChatID:  chat.ID,
		Message: fmt.Sprintf("%s has been added in the group", strings.Join(names, ", ")),
	})
	s.notifier.Emit(ctx, models.EventRefetchChats, chat.Members, nil)
	logrus.WithFields(logrus.Fields{
		"chatID": chat.ID.Hex(),
		"added":  len(added),
	}).Info("Members added to group")
	return chat, nil
}

// RemoveMember drops targetID from a group. The creator cannot be removed and a group
// never shrinks below 3 members this way.
func (s *ChatService) RemoveMember(ctx context.Context, callerID, chatID, targetID primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.mutate(ctx, chatID, func(chat *models.Chat) error {
		if err := adminGuard(chat, callerID); err != nil {
			return err
		}
		if len(chat.Members) <= models.MinGroupMembers {
			return apperror.BadRequest(fmt.Sprintf("group must have at least %d members", models.MinGroupMembers))
		}
		if !chat.HasMember(targetID) {
			return apperror.BadRequest("user is not a member of this group")
		}
		if chat.IsCreator(targetID) {
			return apperror.BadRequest("the group admin cannot be removed")
		}
		chat.Members = lo.Without(chat.Members, targetID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	name := "A member"
	if user, err := s.userRepo.GetUserByID(ctx, targetID); err == nil {
		name = user.Name
	}
	s.notifier.Emit(ctx, models.EventAlert, chat.Members, models.Alert{
		ChatID:  chat.ID,
		Message: fmt.Sprintf("%s has been removed from the group", name),
	})
	s.notifier.Emit(ctx, models.EventRefetchChats, append(slices.Clone(chat.Members), targetID), nil)
	logrus.WithFields(logrus.Fields{
		"chatID":   chat.ID.Hex(),
		"targetID": targetID.Hex(),
	}).Info("Member removed from group")
	return chat, nil
}

// Leave takes the caller out of a group. When the creator leaves, a remaining member is
// picked uniformly at random as the new creator.
func (s *ChatService) Leave(ctx context.Context, callerID, chatID primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.mutate(ctx, chatID, func(chat *models.Chat) error {
		if !chat.IsGroup {
			return apperror.BadRequest("this is not a group chat")
		}
		if !chat.HasMember(callerID) {
			return apperror.BadRequest("you are not a member of this group")
		}
		remaining := lo.Without(chat.Members, callerID)
		if len(remaining) < models.MinMembersAfterLeave {
			return apperror.BadRequest(fmt.Sprintf("group must keep at least %d members", models.MinMembersAfterLeave))
		}
		if chat.IsCreator(callerID) {
			chat.Creator = s.pickSuccessor(remaining)
		}
		chat.Members = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}

	name := "A member"
	if user, err := s.userRepo.GetUserByID(ctx, callerID); err == nil {
		name = user.Name
	}
	s.notifier.Emit(ctx, models.EventAlert, chat.Members, models.Alert{
		ChatID:  chat.ID,
		Message: fmt.Sprintf("User %s has left the group", name),
	})
	s.notifier.Emit(ctx, models.EventRefetchChats, append(slices.Clone(chat.Members), callerID), nil)
	logrus.WithFields(logrus.Fields{
		"chatID": chat.ID.Hex(),
		"userID": callerID.Hex(),
	}).Info("Member left group")
	return chat, nil
}

// pickSuccessor chooses the next creator among the remaining members, fresh on each call.
func (s *ChatService) pickSuccessor(remaining []primitive.ObjectID) *primitive.ObjectID {
	if len(remaining) == 0 {
		return nil
	}
	next := remaining[s.randIntn(len(remaining))]
	return &next
}

// Rename changes a group's name. Only the creator may do it.
func (s *ChatService) Rename(ctx context.Context, callerID, chatID primitive.ObjectID, name string) (*models.Chat, error) {
	name = strings.TrimSpace(name)
	chat, err := s.mutate(ctx, chatID, func(chat *models.Chat) error {
		if err := adminGuard(chat, callerID); err != nil {
			return err
		}
		if name == "" {
			return apperror.BadRequest("group name is required")
		}
		if chat.Name == name {
			return errUnchanged
		}
		chat.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(ctx, models.EventRefetchChats, chat.Members, nil)
	logrus.WithField("chatID", chat.ID.Hex()).Info("Group renamed")
	return chat, nil
}

// DeleteChat removes a chat with its messages and attachments. Group chats may only be
// deleted by their creator, direct chats by either member. A delete interrupted halfway
// can be repeated; once it has completed the chat is gone and a repeat fails with NotFound.
func (s *ChatService) DeleteChat(ctx context.Context, callerID, chatID primitive.ObjectID) error {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil {
		return notFoundOr(err, "chat not found")
	}
	if chat.IsGroup && !chat.IsCreator(callerID) {
		return apperror.Unauthorized("you are not allowed to delete this group")
	}
	if !chat.IsGroup && !chat.HasMember(callerID) {
		return apperror.Unauthorized("you are not allowed to delete this chat")
	}

	if chat.DeletingAt == nil {
		if err := s.chatRepo.MarkDeleting(ctx, chat.ID, s.now()); err != nil {
			return apperror.Internal(err)
		}
	}
	if err := s.cleanup.PurgeChat(ctx, chat.ID); err != nil {
		logrus.WithError(err).WithField("chatID", chat.ID.Hex()).Error("Chat deletion incomplete")
		return apperror.Internal(err)
	}

	s.notifier.Emit(ctx, models.EventRefetchChats, chat.Members, nil)
	logrus.WithFields(logrus.Fields{
		"chatID": chat.ID.Hex(),
		"userID": callerID.Hex(),
	}).Info("Chat deleted")
	return nil
}

// ListForUser returns every chat of the user as it appears in their chat list.
func (s *ChatService) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.ChatSummary, error) {
	chats, err := s.chatRepo.GetChatsByMember(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	users, err := s.usersOf(ctx, chats)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		others := lo.Without(chat.Members, userID)
		summary := models.ChatSummary{
			ID:      chat.ID,
			IsGroup: chat.IsGroup,
			Name:    chat.Name,
			Members: others,
		}
		if chat.IsGroup {
			summary.Avatars = groupAvatars(chat.Members, users)
		} else if len(others) > 0 {
			other := users[others[0]]
			summary.Name = other.Name
			summary.Avatars = []string{other.Avatar.URL}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListMyGroups returns the groups the user administers.
func (s *ChatService) ListMyGroups(ctx context.Context, userID primitive.ObjectID) ([]models.GroupSummary, error) {
	chats, err := s.chatRepo.GetGroupsByCreator(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	users, err := s.usersOf(ctx, chats)
	if err != nil {
		return nil, err
	}

	return lo.Map(chats, func(chat models.Chat, _ int) models.GroupSummary {
		return models.GroupSummary{
			ID:      chat.ID,
			IsGroup: chat.IsGroup,
			Name:    chat.Name,
			Avatars: groupAvatars(chat.Members, users),
		}
	}), nil
}

// GetChat returns a chat the caller belongs to.
func (s *ChatService) GetChat(ctx context.Context, callerID, chatID primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.liveChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(callerID) {
		return nil, apperror.Unauthorized("you are not a member of this chat")
	}
	return chat, nil
}

// GetChatDetails returns a chat the caller belongs to with its members' profiles.
func (s *ChatService) GetChatDetails(ctx context.Context, callerID, chatID primitive.ObjectID) (*models.ChatDetails, error) {
	chat, err := s.GetChat(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.GetUsersByIDs(ctx, chat.Members)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &models.ChatDetails{
		ID:      chat.ID,
		Name:    chat.Name,
		IsGroup: chat.IsGroup,
		Creator: chat.Creator,
		Members: lo.Map(users, func(u models.User, _ int) models.PublicUser { return u.Public() }),
	}, nil
}

// mutate applies a change to the current state of a chat and stores it with a version
// check, replaying the change against a fresh read when another writer got there first.
func (s *ChatService) mutate(ctx context.Context, chatID primitive.ObjectID, apply func(chat *models.Chat) error) (*models.Chat, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		chat, err := s.liveChat(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if err := apply(chat); errors.Is(err, errUnchanged) {
			return chat, nil
		} else if err != nil {
			return nil, err
		}

		err = s.chatRepo.UpdateChat(ctx, chat)
		if errors.Is(err, repository.ErrVersionConflict) {
			logrus.WithFields(logrus.Fields{
				"chatID":  chatID.Hex(),
				"attempt": attempt,
			}).Debug("Chat changed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, apperror.Internal(err)
		}
		return chat, nil
	}
	return nil, apperror.Conflict("chat is being modified by someone else, please retry")
}

// liveChat loads a chat whose deletion has not started.
func (s *ChatService) liveChat(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.chatRepo.GetChatByID(ctx, chatID)
	if err != nil || chat.DeletingAt != nil {
		return nil, notFoundOr(err, "chat not found")
	}
	return chat, nil
}

// existingUsers loads ids and fails with NotFound unless every one of them exists.
func (s *ChatService) existingUsers(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	users, err := s.userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if len(users) != len(lo.Uniq(ids)) {
		return nil, apperror.NotFound("one or more users not found")
	}
	return users, nil
}

func (s *ChatService) usersOf(ctx context.Context, chats []models.Chat) (map[primitive.ObjectID]models.User, error) {
	ids := lo.Uniq(lo.FlatMap(chats, func(c models.Chat, _ int) []primitive.ObjectID { return c.Members }))
	if len(ids) == 0 {
		return map[primitive.ObjectID]models.User{}, nil
	}
	users, err := s.userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return lo.KeyBy(users, func(u models.User) primitive.ObjectID { return u.ID }), nil
}

// adminGuard holds the checks shared by every creator-only group mutation.
func adminGuard(chat *models.Chat, callerID primitive.ObjectID) error {
	if !chat.IsGroup {
		return apperror.BadRequest("this is not a group chat")
	}
	if !chat.IsCreator(callerID) {
		return apperror.Unauthorized("you are not allowed to manage this group")
	}
	return nil
}

// groupAvatars returns up to three member avatars.
func groupAvatars(members []primitive.ObjectID, users map[primitive.ObjectID]models.User) []string {
	avatars := make([]string, 0, 3)
	for _, id := range members {
		if len(avatars) == 3 {
			break
		}
		if u, ok := users[id]; ok {
			avatars = append(avatars, u.Avatar.URL)
		}
	}
	return avatars
}
