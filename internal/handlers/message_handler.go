package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Dias221467/Chat_Server/internal/models"
	"github.com/Dias221467/Chat_Server/internal/services"
	"github.com/Dias221467/Chat_Server/pkg/apperror"
)

// maxUploadSize caps a whole attachment request.
const maxUploadSize = 10 << 20

// MessageHandler serves chat history and posting.
type MessageHandler struct {
	Service MessageAPI
}

func NewMessageHandler(service MessageAPI) *MessageHandler {
	return &MessageHandler{Service: service}
}

// GetMessagesHandler returns ?page= of the chat history, oldest first within the page.
func (h *MessageHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			writeError(w, r, apperror.BadRequest("invalid page"))
			return
		}
	}

	result, err := h.Service.Page(r.Context(), chatID, userID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":    result.Messages,
		"total_pages": result.TotalPages,
	})
}

// SendMessageHandler posts a text message.
func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.Service.Append(r.Context(), chatID, userID, body.Content, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": msg})
}

// SendAttachmentsHandler posts up to five files sent as multipart "files" parts.
func (h *MessageHandler) SendAttachmentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, chatID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, r, apperror.BadRequest("invalid or oversized upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) > models.MaxAttachments {
		writeError(w, r, apperror.BadRequest("files can't be more than 5"))
		return
	}

	files := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, apperror.BadRequest(fmt.Sprintf("failed to read %s", fh.Filename)))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, r, apperror.BadRequest(fmt.Sprintf("failed to read %s", fh.Filename)))
			return
		}
		files = append(files, services.Upload{Name: fh.Filename, Data: data})
	}

	msg, err := h.Service.SendAttachments(r.Context(), chatID, userID, files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": msg})
}
