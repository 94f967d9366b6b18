package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"NoticeHub/internal/audience"
	"NoticeHub/internal/config"
)

// Manager owns one Session per signed-in principal. Sessions are created on
// first use, re-keyed to a fresh recipient attribute set whenever the
// underlying profile changes, and all released on shutdown. There is no
// cross-principal sharing: inbox, dispatcher state and sender-role cache are
// all per session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	resolver *audience.Resolver
	loader   *BatchLoader
	feed     Feed
	roleDir  RoleDirectory
	alerts   *config.AlertService
	log      *zap.Logger
}

func NewManager(resolver *audience.Resolver, loader *BatchLoader, feed Feed, roleDir RoleDirectory, alerts *config.AlertService, log *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		resolver: resolver,
		loader:   loader,
		feed:     feed,
		roleDir:  roleDir,
		alerts:   alerts,
		log:      log,
	}
}

// SessionFor returns the session for the principal described by the profile,
// creating it on first use. When the resolved attribute set differs from the
// one the session currently serves (a dependent was linked or unlinked, the
// class roster changed), the session is re-initialized under a new epoch.
func (m *Manager) SessionFor(ctx context.Context, profile *audience.Profile, email string, alertsEnabled bool) (*Session, error) {
	rec := m.resolver.Resolve(ctx, profile)

	m.mu.Lock()
	sess, ok := m.sessions[profile.ID]
	if !ok {
		device := NewEmailDevice(m.alerts, email, alertsEnabled)
		dispatcher := NewDispatcher(device, m.log)
		roles := NewRoleResolver(m.roleDir, m.log)
		sess = NewSession(m.loader, m.feed, dispatcher, roles, m.log)
		m.sessions[profile.ID] = sess
	}
	m.mu.Unlock()

	if sess.Recipient().Equal(rec) {
		return sess, nil
	}
	if err := sess.SetRecipient(ctx, rec); err != nil {
		// Recoverable: the session stays usable and Refresh can retry.
		m.log.Warn("session initialization incomplete",
			zap.String("principal", profile.ID),
			zap.Error(err))
	}
	return sess, nil
}

// Drop tears down the session for a principal, releasing its subscription.
// Called on logout.
func (m *Manager) Drop(principalID string) {
	m.mu.Lock()
	sess, ok := m.sessions[principalID]
	delete(m.sessions, principalID)
	m.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// Close releases every live session. Called from the fx shutdown hook.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}
