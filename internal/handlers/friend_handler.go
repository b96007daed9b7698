package handlers

import (
	"net/http"

	"github.com/Dias221467/Chat_Server/pkg/apperror"
	"github.com/Dias221467/Chat_Server/pkg/logger"
	"github.com/Dias221467/Chat_Server/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FriendHandler manages HTTP endpoints related to friend requests.
type FriendHandler struct {
	Service FriendAPI
}

// NewFriendHandler initializes a new FriendHandler.
func NewFriendHandler(service FriendAPI) *FriendHandler {
	return &FriendHandler{Service: service}
}

// SendFriendRequestHandler allows a user to send a friend request.
func (h *FriendHandler) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	senderID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	receiverID, err := primitive.ObjectIDFromHex(body.UserID)
	if err != nil {
		writeError(w, r, apperror.BadRequest("invalid user_id"))
		return
	}

	request, err := h.Service.SendFriendRequest(r.Context(), senderID, receiverID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Log.Infof("User %s sent a friend request to %s", senderID.Hex(), receiverID.Hex())
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Friend request sent",
		"request": request,
	})
}

// GetPendingRequestsHandler shows all incoming friend requests.
func (h *FriendHandler) GetPendingRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	requests, err := h.Service.GetPendingRequests(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// RespondToFriendRequestHandler allows accepting or rejecting a friend request.
func (h *FriendHandler) RespondToFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	requestID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		Accept *bool `json:"accept"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Accept == nil {
		writeError(w, r, apperror.BadRequest("accept is required"))
		return
	}

	chat, err := h.Service.RespondToRequest(r.Context(), userID, requestID, *body.Accept)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !*body.Accept {
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Friend request rejected"})
		return
	}
	logger.Log.Infof("User %s accepted friend request %s", userID.Hex(), requestID.Hex())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Friend request accepted",
		"chat":    chat,
	})
}

// GetFriendsHandler returns the caller's friends, optionally leaving out members of chat_id.
func (h *FriendHandler) GetFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var chatID *primitive.ObjectID
	if raw := r.URL.Query().Get("chat_id"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			writeError(w, r, apperror.BadRequest("invalid chat_id"))
			return
		}
		chatID = &id
	}

	friends, err := h.Service.GetFriends(r.Context(), userID, chatID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"friends": friends})
}
