package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dias221467/Chat_Server/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatHandler exposes the chat registry.
type ChatHandler struct {
	Service ChatAPI
}

func NewChatHandler(service ChatAPI) *ChatHandler {
	return &ChatHandler{Service: service}
}

// caller resolves the session user and the {id} chat of the route.
func caller(r *http.Request) (primitive.ObjectID, primitive.ObjectID, error) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	chatID, err := pathID(r, "id")
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return userID, chatID, nil
}

// CreateGroupHandler creates a group with the caller as creator.
func (h *ChatHandler) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	members, err := parseIDs(body.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}

	chat, err := h.Service.CreateGroup(r.Context(), userID, body.Name, members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Group created",
		"chat":    chat,
	})
}

// GetMyChatsHandler lists the caller's chats.
func (h *ChatHandler) GetMyChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	chats, err := h.Service.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

// GetMyGroupsHandler lists the groups the caller administers.
func (h *ChatHandler) GetMyGroupsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	groups, err := h.Service.ListMyGroups(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// GetChatHandler returns one chat; ?populate=true expands its members.
func (h *ChatHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if populate, _ := strconv.ParseBool(r.URL.Query().Get("populate")); populate {
		details, err := h.Service.GetChatDetails(r.Context(), userID, chatID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"chat": details})
		return
	}

	chat, err := h.Service.GetChat(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chat": chat})
}

// AddMembersHandler adds users to a group.
func (h *ChatHandler) AddMembersHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		Members []string `json:"members"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	members, err := parseIDs(body.Members)
	if err != nil {
		writeError(w, r, err)
		return
	}

	chat, err := h.Service.AddMembers(r.Context(), userID, chatID, members)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Members added successfully",
		"chat":    chat,
	})
}

// RemoveMemberHandler removes {userId} from a group.
func (h *ChatHandler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	targetID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	chat, err := h.Service.RemoveMember(r.Context(), userID, chatID, targetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Member removed successfully",
		"chat":    chat,
	})
}

// LeaveGroupHandler takes the caller out of a group.
func (h *ChatHandler) LeaveGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.Service.Leave(r.Context(), userID, chatID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Left group successfully"})
}

// RenameGroupHandler renames a group.
func (h *ChatHandler) RenameGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	chat, err := h.Service.Rename(r.Context(), userID, chatID, body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Group renamed successfully",
		"chat":    chat,
	})
}

// DeleteChatHandler deletes a chat with its history and attachments.
func (h *ChatHandler) DeleteChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Service.DeleteChat(r.Context(), userID, chatID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Chat deleted successfully"})
}
