package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"NoticeHub/internal/audience"
)

// batchSource is the coarse document query the loader narrows. Satisfied by
// NotificationRepository; tests substitute fakes.
type batchSource interface {
	FindForRecipient(ctx context.Context, tokens []string, now time.Time, limit int64) ([]*Notification, error)
}

// BatchLoader populates a session's inbox. The server query only does coarse
// "contains any token" inclusion, so every returned document is re-checked
// through the authoritative evaluator before it is kept.
type BatchLoader struct {
	source   batchSource
	log      *zap.Logger
	pageSize int64
}

func NewBatchLoader(source batchSource, log *zap.Logger, pageSize int64) *BatchLoader {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &BatchLoader{source: source, log: log, pageSize: pageSize}
}

// Load fetches and narrows the notifications relevant to the recipient,
// newest first. A query error is recoverable: callers keep any previously
// good inbox and surface a retryable error state.
func (l *BatchLoader) Load(ctx context.Context, rec audience.Recipient, now time.Time) ([]*Notification, error) {
	docs, err := l.source.FindForRecipient(ctx, rec.Tokens(), now, l.pageSize)
	if err != nil {
		return nil, fmt.Errorf("batch load: %w", err)
	}
	matched := make([]*Notification, 0, len(docs))
	for _, n := range docs {
		if !n.Matches(rec, now) {
			continue
		}
		matched = append(matched, n)
	}
	l.log.Debug("batch load narrowed",
		zap.String("recipient", rec.ID),
		zap.Int("fetched", len(docs)),
		zap.Int("matched", len(matched)))
	return matched, nil
}
