package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/repository"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryStore backs every store interface with maps and mirrors the repository contracts:
// the unique pending pair, the unique live direct key and the chat version check.
type memoryStore struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	requests map[primitive.ObjectID]models.FriendRequest
	chats    map[primitive.ObjectID]models.Chat
	messages []models.Message
	clock    time.Time

	// failures injected per method name; each entry fails one call.
	fail map[string][]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[primitive.ObjectID]models.User{},
		requests: map[primitive.ObjectID]models.FriendRequest{},
		chats:    map[primitive.ObjectID]models.Chat{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		fail:     map[string][]error{},
	}
}

func (m *memoryStore) failNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = append(m.fail[method], err)
}

func (m *memoryStore) injected(method string) error {
	queue := m.fail[method]
	if len(queue) == 0 {
		return nil
	}
	m.fail[method] = queue[1:]
	return queue[0]
}

func (m *memoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryStore) addUser(name string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{
		ID:       primitive.NewObjectID(),
		Name:     name,
		Username: strings.ToLower(name),
		Email:    strings.ToLower(name) + "@example.com",
		Avatar:   models.Avatar{URL: "https://cdn.example.com/" + strings.ToLower(name) + ".png"},
	}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) addChat(chat models.Chat) models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	m.chats[chat.ID] = chat
	return chat
}

func (m *memoryStore) chat(id primitive.ObjectID) (models.Chat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	return c, ok
}

func (m *memoryStore) messagesOf(chatID primitive.ObjectID) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Filter(m.messages, func(msg models.Message, _ int) bool { return msg.ChatID == chatID })
}

// UserStore

func (m *memoryStore) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return nil, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	m.users[user.ID] = *user
	return user, nil
}

func (m *memoryStore) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memoryStore) GetUserByLogin(_ context.Context, email, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (email != "" && u.Email == email) || (username != "" && u.Username == username) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, id := range lo.Uniq(ids) {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryStore) SearchByName(_ context.Context, name string, exclude []primitive.ObjectID) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if lo.Contains(exclude, u.ID) {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), strings.ToLower(name)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FriendStore

func (m *memoryStore) CreateRequest(_ context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreateRequest"); err != nil {
		return nil, err
	}
	req.PairKey = models.PairKey(req.SenderID, req.ReceiverID)
	req.Status = models.RequestPending
	for _, r := range m.requests {
		if r.PairKey == req.PairKey && r.Status == models.RequestPending {
			return nil, repository.ErrDuplicate
		}
	}
	req.ID = primitive.NewObjectID()
	req.CreatedAt = m.tick()
	m.requests[req.ID] = *req
	return req, nil
}

func (m *memoryStore) FindPendingBetween(_ context.Context, a, b primitive.ObjectID) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.PairKey(a, b)
	for _, r := range m.requests {
		if r.PairKey == key && r.Status == models.RequestPending {
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetRequestByID(_ context.Context, id primitive.ObjectID) (*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memoryStore) GetRequestsByReceiver(_ context.Context, receiverID primitive.ObjectID) ([]models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.FriendRequest{}
	for _, r := range m.requests {
		if r.ReceiverID == receiverID && r.Status == models.RequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) DeleteRequest(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("DeleteRequest"); err != nil {
		return err
	}
	delete(m.requests, id)
	return nil
}

// ChatStore

func (m *memoryStore) CreateChat(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat.ID = primitive.NewObjectID()
	chat.CreatedAt = m.tick()
	chat.UpdatedAt = chat.CreatedAt
	chat.Version = 0
	m.chats[chat.ID] = *chat
	return chat, nil
}

func (m *memoryStore) UpsertDirectChat(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("UpsertDirectChat"); err != nil {
		return nil, err
	}
	for _, c := range m.chats {
		if c.DirectKey == chat.DirectKey && c.DeletingAt == nil {
			return &c, nil
		}
	}
	chat.ID = primitive.NewObjectID()
	chat.CreatedAt = m.tick()
	m.chats[chat.ID] = *chat
	return chat, nil
}

func (m *memoryStore) GetChatByID(_ context.Context, id primitive.ObjectID) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Members = slices.Clone(c.Members)
	return &c, nil
}

func (m *memoryStore) GetDirectChat(_ context.Context, directKey string) (*models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.DirectKey == directKey && c.DeletingAt == nil {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) GetChatsByMember(_ context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	return m.findChats(func(c models.Chat) bool { return c.HasMember(userID) }), nil
}

func (m *memoryStore) GetGroupsByCreator(_ context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	return m.findChats(func(c models.Chat) bool { return c.IsGroup && c.IsCreator(userID) }), nil
}

func (m *memoryStore) findChats(match func(c models.Chat) bool) []models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Chat{}
	for _, c := range m.chats {
		if c.DeletingAt == nil && match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memoryStore) GetStaleDeletions(_ context.Context, before time.Time) ([]models.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Chat{}
	for _, c := range m.chats {
		if c.DeletingAt != nil && !c.DeletingAt.After(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateChat(_ context.Context, chat *models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("UpdateChat"); err != nil {
		return err
	}
	stored, ok := m.chats[chat.ID]
	if !ok || stored.Version != chat.Version || stored.DeletingAt != nil {
		return repository.ErrVersionConflict
	}
	stored.Name = chat.Name
	stored.Members = slices.Clone(chat.Members)
	stored.Creator = chat.Creator
	stored.Version++
	m.chats[chat.ID] = stored
	chat.Version++
	return nil
}

func (m *memoryStore) MarkDeleting(_ context.Context, id primitive.ObjectID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok || c.DeletingAt != nil {
		return nil
	}
	c.DeletingAt = &at
	c.DirectKey = ""
	m.chats[id] = c
	return nil
}

func (m *memoryStore) DeleteChat(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("DeleteChat"); err != nil {
		return err
	}
	delete(m.chats, id)
	return nil
}

// MessageStore

func (m *memoryStore) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreateMessage"); err != nil {
		return nil, err
	}
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = m.tick()
	m.messages = append(m.messages, *msg)
	return msg, nil
}

func (m *memoryStore) GetMessagesPage(_ context.Context, chatID primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chatMessages []models.Message
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].ChatID == chatID {
			chatMessages = append(chatMessages, m.messages[i])
		}
	}
	if skip >= int64(len(chatMessages)) {
		return []models.Message{}, nil
	}
	end := min(skip+limit, int64(len(chatMessages)))
	return slices.Clone(chatMessages[skip:end]), nil
}

func (m *memoryStore) CountMessages(_ context.Context, chatID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(lo.CountBy(m.messages, func(msg models.Message) bool { return msg.ChatID == chatID })), nil
}

func (m *memoryStore) GetMessagesWithAttachments(_ context.Context, chatID primitive.ObjectID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Filter(m.messages, func(msg models.Message, _ int) bool {
		return msg.ChatID == chatID && len(msg.Attachments) > 0
	}), nil
}

func (m *memoryStore) DeleteMessagesByChat(_ context.Context, chatID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("DeleteMessagesByChat"); err != nil {
		return 0, err
	}
	before := len(m.messages)
	m.messages = lo.Reject(m.messages, func(msg models.Message, _ int) bool { return msg.ChatID == chatID })
	return int64(before - len(m.messages)), nil
}

var (
	errStoreDown    = errors.New("store unavailable")
	errDuplicateKey = fmt.Errorf("failed to create friend request: %w", repository.ErrDuplicate)
)
