package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/realtime"
	"github.com/Dias221467/Chat_Server/pkg/logger"
	"github.com/Dias221467/Chat_Server/pkg/middleware"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// inboundFrame is what a client may send over the socket.
type inboundFrame struct {
	Type    string `json:"type"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// WSHandler upgrades authenticated requests to websocket sessions on the hub.
type WSHandler struct {
	Hub      *realtime.Hub
	Messages MessageAPI
	upgrader websocket.Upgrader
}

// NewWSHandler accepts browser connections from allowedOrigins only. Requests without an
// Origin header are not from a browser and are let through.
func NewWSHandler(hub *realtime.Hub, messages MessageAPI, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		Hub:      hub,
		Messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeWS runs one session until the peer disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := h.Hub.Register(userID.Hex(), conn)
	logger.Log.WithField("userID", userID.Hex()).Info("WebSocket connected")

	go client.WritePump()
	client.ReadLoop(func(raw []byte) {
		h.handleFrame(r, userID, raw)
	})
	logger.Log.WithField("userID", userID.Hex()).Info("WebSocket disconnected")
}

func (h *WSHandler) handleFrame(r *http.Request, userID primitive.ObjectID, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Log.WithError(err).Debug("Ignoring malformed websocket frame")
		return
	}
	if frame.Type != models.EventNewMessage {
		logger.Log.WithField("type", frame.Type).Debug("Ignoring unknown websocket frame")
		return
	}

	chatID, err := primitive.ObjectIDFromHex(frame.ChatID)
	if err != nil {
		logger.Log.WithField("chatID", frame.ChatID).Debug("Ignoring frame with invalid chat id")
		return
	}
	if _, err := h.Messages.Append(r.Context(), chatID, userID, frame.Content, nil); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"userID": userID.Hex(),
			"chatID": frame.ChatID,
		}).Warn("Failed to store websocket message")
	}
}
