package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"NoticeHub/internal/audience"
)

// Session is the notification state for one signed-in principal: the inbox,
// the live feed subscription, the alert dispatcher and the sender-role
// resolver, all private to this principal. The recipient attribute set is an
// explicit input; role-specific derivation lives with the resolver, so one
// session implementation serves every portal.
//
// Every recomputation bumps an epoch counter. Batch responses and feed events
// carry the epoch they were started under and are discarded when a newer
// recomputation has superseded them, which also guarantees a stale
// subscription can never merge or alert on behalf of an old attribute set.
type Session struct {
	mu          sync.Mutex
	log         *zap.Logger
	loader      *BatchLoader
	feed        Feed
	dispatcher  *Dispatcher
	roles       *RoleResolver
	inbox       *Inbox
	now         func() time.Time
	rec         audience.Recipient
	epoch       uint64
	loadGen     uint64
	loading     bool
	lastErr     error
	unsubscribe func()
}

func NewSession(loader *BatchLoader, feed Feed, dispatcher *Dispatcher, roles *RoleResolver, log *zap.Logger) *Session {
	return &Session{
		log:        log,
		loader:     loader,
		feed:       feed,
		dispatcher: dispatcher,
		roles:      roles,
		inbox:      NewInbox(),
		now:        time.Now,
	}
}

// SetRecipient (re)initializes the session for a new recipient attribute set:
// the old subscription is released, the inbox is cleared and rebuilt, and a
// fresh subscription owned by the new epoch is installed. Safe to call on
// login, logout and dependent-list changes.
func (s *Session) SetRecipient(ctx context.Context, rec audience.Recipient) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.rec = rec
	s.lastErr = nil
	old := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if old != nil {
		old()
	}
	s.inbox.Clear()

	loadErr := s.load(ctx, epoch)

	// The subscription outlives the triggering request; its lifetime is the
	// epoch's, ended only by the unsubscribe function.
	unsub, err := s.feed.Subscribe(context.Background(), func(ev Event) {
		s.onEvent(epoch, ev)
	})
	if err != nil {
		s.mu.Lock()
		if epoch == s.epoch {
			s.lastErr = err
		}
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	if epoch != s.epoch {
		// Superseded while subscribing; the newer epoch owns the feed now.
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsubscribe = unsub
	s.mu.Unlock()
	return loadErr
}

// Refresh re-runs the batch loader against the current recipient.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	return s.load(ctx, epoch)
}

// load runs one batch load under the given epoch. Each load takes a fresh
// generation number; a response that is no longer the latest-started load is
// discarded, whether it was superseded by a recipient change or by an
// overlapping refresh, so a slow stale response can never overwrite a newer
// one. A failed load keeps the previous inbox and records a retryable error.
func (s *Session) load(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return nil
	}
	s.loadGen++
	gen := s.loadGen
	rec := s.rec
	s.loading = true
	s.mu.Unlock()

	notifications, err := s.loader.Load(ctx, rec, s.now())

	s.mu.Lock()
	if epoch != s.epoch || gen != s.loadGen {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		return err
	}
	s.lastErr = nil
	s.mu.Unlock()

	// Merge rather than replace: within a session the inbox is append-only,
	// and an entry the live feed delivered while the query was in flight must
	// survive the load that overlapped it. SetRecipient clears the inbox
	// before its load, so a recipient change still rebuilds from scratch.
	s.inbox.MergeAll(notifications)
	go s.roles.Ensure(context.Background(), s.inbox.Senders())
	return nil
}

// onEvent handles one live feed delivery. Each event runs in isolation: a
// panic or malformed payload is logged and dropped without touching the
// subscription. Update and delete events are routed to reserved hooks so
// handling can be added without resubscribing.
func (s *Session) onEvent(epoch uint64, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notification event handler panicked", zap.Any("panic", r))
		}
	}()

	switch ev.Op {
	case OpCreate:
	case OpUpdate, OpDelete:
		// Reserved for future handling.
		return
	default:
		return
	}
	if ev.Doc == nil {
		s.log.Warn("create event without document, skipping")
		return
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	rec := s.rec
	s.mu.Unlock()

	if !ev.Doc.Matches(rec, s.now()) {
		return
	}
	if !s.inbox.Merge(ev.Doc) {
		return
	}
	s.dispatcher.Dispatch(context.Background(), ev.Doc)
	go s.roles.Ensure(context.Background(), []string{ev.Doc.Sender})
}

// Notifications returns the current matched entries, newest first. Entries
// whose validity window closed after they were cached are filtered out here,
// so readers never see an expired notification.
func (s *Session) Notifications() []*Notification {
	now := s.now()
	all := s.inbox.List()
	current := all[:0]
	for _, n := range all {
		if n.Valid(now) {
			current = append(current, n)
		}
	}
	return current
}

// Loading reports whether a batch load is in progress.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the recoverable error from the most recent load, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SenderRole returns the memoized display role for a sender id.
func (s *Session) SenderRole(id string) (string, RoleState) {
	return s.roles.Lookup(id)
}

// Recipient returns the attribute set the session currently serves.
func (s *Session) Recipient() audience.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}

// Close releases the feed subscription. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
