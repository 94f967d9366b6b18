package notification

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"NoticeHub/internal/config"
)

// NotificationRepository handles DB operations for notification documents.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new repository for notifications.
func NewNotificationRepository(db *mongo.Database, settings *config.Settings) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection(settings.NotificationsCollection)}
}

// FindForRecipient runs the coarse server-side query: notifications whose
// target list contains any of the recipient's tokens and whose validity window
// has not closed, newest first, capped at limit. The query is over-inclusive
// on purpose; callers re-filter every returned document through the evaluator.
func (r *NotificationRepository) FindForRecipient(ctx context.Context, tokens []string, now time.Time, limit int64) ([]*Notification, error) {
	filter := bson.M{
		"targets":     bson.M{"$in": tokens},
		"valid_until": bson.M{"$gte": now},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "issued_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var notifications []*Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// Insert writes a new notification document. Used by the publish endpoint;
// delivery to signed-in recipients happens through the change stream.
func (r *NotificationRepository) Insert(ctx context.Context, n *Notification) error {
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

// Watch opens a change stream on the notification collection, restricted to
// the operation kinds the feed listener understands. The stream carries the
// full document on inserts and updates.
func (r *NotificationRepository) Watch(ctx context.Context) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	return r.collection.Watch(ctx, pipeline, opts)
}
