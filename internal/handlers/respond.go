package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Dias221467/Chat_Server/pkg/apperror"
	"github.com/Dias221467/Chat_Server/pkg/logger"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// writeJSON sends a successful response. fields are merged next to "success": true.
func writeJSON(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Warn("Failed to write response")
	}
}

// writeError logs caller mistakes at warn and everything else at error, then renders err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	entry := logger.Log.WithError(err).WithField("path", r.URL.Path)
	if apperror.KindOf(err) == apperror.KindInternal {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}
	apperror.Write(w, err)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.BadRequest("invalid request payload")
	}
	return nil
}

// pathID parses the named route variable as an ObjectID.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return primitive.NilObjectID, apperror.BadRequest("invalid " + name)
	}
	return id, nil
}

func parseIDs(hexes []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, apperror.BadRequest("invalid user id " + h)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
