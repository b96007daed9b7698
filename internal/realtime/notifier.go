//go:generate go run go.uber.org/mock/mockgen -source=notifier.go -destination=../mocks/mock_notifier.go -package=mocks
package realtime

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier pushes domain events to the sessions of the given users. It never fails the
// caller: delivery problems are logged and dropped.
type Notifier interface {
	Emit(ctx context.Context, event string, recipients []primitive.ObjectID, payload interface{})
}

// Frame is what a websocket client receives.
type Frame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Payload: payload})
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.Hex())
	}
	return out
}
