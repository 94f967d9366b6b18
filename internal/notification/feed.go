package notification

import (
	"context"

	"go.uber.org/zap"
)

// Operation tags a change-feed event with what happened to the document.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Event is one change-feed delivery. Doc is nil for deletes and for malformed
// payloads the decoder could not recover.
type Event struct {
	Op  Operation
	Doc *Notification
}

// Feed is the change-notification channel over the notification collection.
// Subscribe registers a handler and returns the unsubscribe function; the
// subscription is exclusively owned by the session that created it and must be
// released on recipient change or teardown.
type Feed interface {
	Subscribe(ctx context.Context, fn func(Event)) (func(), error)
}

// ChangeFeed implements Feed on top of a Mongo change stream.
type ChangeFeed struct {
	repo *NotificationRepository
	log  *zap.Logger
}

func NewChangeFeed(repo *NotificationRepository, log *zap.Logger) *ChangeFeed {
	return &ChangeFeed{repo: repo, log: log}
}

type changeEvent struct {
	OperationType string        `bson:"operationType"`
	FullDocument  *Notification `bson:"fullDocument"`
}

// Subscribe opens the stream and pumps events to fn one at a time. A malformed
// event is logged and skipped; it never terminates the subscription. The
// returned function cancels the stream and is safe to call more than once.
func (f *ChangeFeed) Subscribe(ctx context.Context, fn func(Event)) (func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := f.repo.Watch(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				f.log.Warn("skipping undecodable change event", zap.Error(err))
				continue
			}
			fn(Event{Op: operationOf(ev.OperationType), Doc: ev.FullDocument})
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			f.log.Error("change stream terminated", zap.Error(err))
		}
	}()
	return cancel, nil
}

func operationOf(t string) Operation {
	switch t {
	case "insert":
		return OpCreate
	case "update", "replace":
		return OpUpdate
	case "delete":
		return OpDelete
	}
	return Operation(t)
}
