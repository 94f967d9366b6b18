package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"NoticeHub/internal/audience"
)

// Sender sentinels that never resolve through the role directory.
const (
	SenderSystem = "system"
	SenderAdmin  = "admin"
)

// Notification is a broadcast-style notification document. Producers write it
// once with an open-ended target list; this core only ever reads it.
type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Body       string             `bson:"body" json:"body"`
	Sender     string             `bson:"sender" json:"sender"`           // User id, or the system/admin sentinel
	IssuedAt   time.Time          `bson:"issued_at" json:"issued_at"`     // Ordering key, newest first
	ValidUntil time.Time          `bson:"valid_until" json:"valid_until"` // Excluded once evaluation time passes this
	Targets    []string           `bson:"targets" json:"targets"`         // Wire-form "dimension:value" tokens
}

// Valid reports whether the notification is still inside its delivery window.
// Applied both when the batch loader narrows server results and again at live
// feed ingestion, so a record expiring between the two cannot leak through.
func (n *Notification) Valid(now time.Time) bool {
	return !now.After(n.ValidUntil)
}

// Matches runs the full evaluator chain: validity first, then the per-dimension
// target rules. Expired records never match regardless of targeting.
func (n *Notification) Matches(rec audience.Recipient, now time.Time) bool {
	if !n.Valid(now) {
		return false
	}
	return audience.Match(audience.ParseTargets(n.Targets), rec)
}
