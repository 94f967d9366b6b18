package notification

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"NoticeHub/internal/audience"
)

var (
	ErrNoTargets      = errors.New("notification needs at least one well-formed target")
	ErrAlreadyExpired = errors.New("valid_until must be in the future")
)

type inserter interface {
	Insert(ctx context.Context, n *Notification) error
}

// NotificationService handles the producer side: validating and publishing
// notification documents. Delivery to signed-in recipients happens through
// the change stream, not here.
type NotificationService struct {
	repo inserter
	log  *zap.Logger
}

func NewNotificationService(repo *NotificationRepository, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, log: log}
}

// Publish stamps and stores a new notification. The target list must contain
// at least one parseable token; an explicitly empty list would match nobody
// and is rejected at the door instead of silently going nowhere.
func (s *NotificationService) Publish(ctx context.Context, n *Notification) error {
	if len(audience.ParseTargets(n.Targets)) == 0 {
		return ErrNoTargets
	}
	if n.IssuedAt.IsZero() {
		n.IssuedAt = time.Now()
	}
	if !n.ValidUntil.After(n.IssuedAt) {
		return ErrAlreadyExpired
	}
	if n.Sender == "" {
		n.Sender = SenderSystem
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}
	s.log.Info("notification published",
		zap.String("sender", n.Sender),
		zap.Int("targets", len(n.Targets)),
		zap.Time("valid_until", n.ValidUntil))
	return nil
}
