package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestPending is the only stored status; answered requests are deleted.
const RequestPending = "pending"

type FriendRequest struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID   primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	ReceiverID primitive.ObjectID `bson:"receiver_id" json:"receiver_id"`
	PairKey    string             `bson:"pair_key" json:"-"`
	Status     string             `bson:"status" json:"status"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// IncomingRequest is a pending request enriched with its sender's profile.
type IncomingRequest struct {
	ID     primitive.ObjectID `json:"id"`
	Sender PublicUser         `json:"sender"`
}

// PairKey identifies the unordered pair {a, b}.
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}
