package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	relayChannel = "chat:events"
	relayTimeout = 2 * time.Second
)

type relayMessage struct {
	Recipients []string        `json:"recipients"`
	Frame      json.RawMessage `json:"frame"`
}

// RedisRelay publishes events on a Redis channel so every server instance can deliver
// them to the sessions it holds.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
}

func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: hub}
}

func (r *RedisRelay) Emit(ctx context.Context, event string, recipients []primitive.ObjectID, payload interface{}) {
	data, err := encodeRelay(event, recipients, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}

	// The request may finish before the publish does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayTimeout)
	defer cancel()

	if err := r.rdb.Publish(ctx, relayChannel, data).Err(); err != nil {
		logrus.WithError(err).WithField("event", event).Warn("Redis publish failed, delivering locally")
		r.hub.Emit(ctx, event, recipients, payload)
	}
}

// Run relays published events to the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, relayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			recipients, frame, err := decodeRelay([]byte(msg.Payload))
			if err != nil {
				logrus.WithError(err).Warn("Ignoring malformed relay message")
				continue
			}
			r.hub.Deliver(recipients, frame)
		}
	}
}

func encodeRelay(event string, recipients []primitive.ObjectID, payload interface{}) ([]byte, error) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(relayMessage{Recipients: hexIDs(recipients), Frame: frame})
}

func decodeRelay(data []byte) ([]string, []byte, error) {
	var msg relayMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, err
	}
	return msg.Recipients, msg.Frame, nil
}
