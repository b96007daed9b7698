package handlers

import (
	"net/http"
	"time"

	"github.com/Dias221467/Chat_Server/internal/config"
	"github.com/Dias221467/Chat_Server/internal/services"
	"github.com/Dias221467/Chat_Server/pkg/middleware"
	log "github.com/sirupsen/logrus"
)

// UserHandler handles HTTP requests related to accounts and sessions.
type UserHandler struct {
	Service UserAPI
	Config  *config.Config
}

// NewUserHandler creates a new instance of UserHandler.
func NewUserHandler(service UserAPI, cfg *config.Config) *UserHandler {
	return &UserHandler{
		Service: service,
		Config:  cfg,
	}
}

// RegisterUserHandler handles user registration and starts a session.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.Service.RegisterUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setSession(w, r, token, h.Config.TokenExpiry)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created",
		"user":    user,
		"token":   token,
	})
}

// LoginUserHandler handles user login.
func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var in services.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.Service.AuthenticateUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.WithField("userID", user.ID.Hex()).Info("User logged in successfully")
	h.setSession(w, r, token, h.Config.TokenExpiry)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome back, " + user.Name,
		"user":    user,
		"token":   token,
	})
}

// LogoutUserHandler clears the session cookie.
func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	h.setSession(w, r, "", -1)
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Logged out successfully"})
}

// GetMeHandler returns the caller's own profile.
func (h *UserHandler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Service.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// SearchUsersHandler finds users by name that the caller has no chat with.
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	users, err := h.Service.SearchUsers(r.Context(), userID, r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// setSession writes the session cookie; a negative maxAge removes it.
func (h *UserHandler) setSession(w http.ResponseWriter, r *http.Request, token string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(maxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}
