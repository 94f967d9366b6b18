package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// RoleState describes what the resolver knows about one sender id.
type RoleState int

const (
	RoleUnknown     RoleState = iota // never requested
	RoleLoading                      // part of the in-flight batch
	RoleResolved                     // label available
	RoleUnavailable                  // terminal: lookup failed or id unresolvable
)

// RoleDirectory is the upstream batched role-lookup service. Ids absent from
// the returned map are treated as unresolvable.
type RoleDirectory interface {
	RolesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// RoleResolver maps sender ids to display role labels, best effort. Each id is
// requested at most once per session: resolved labels and terminal failures
// are both memoized, and a new batch never starts while one is in flight, so
// overlapping id sets cannot produce overlapping requests. Labels are never
// invalidated within a session; staleness is acceptable for a display label.
type RoleResolver struct {
	mu       sync.Mutex
	dir      RoleDirectory
	log      *zap.Logger
	labels   map[string]string // "" marks a terminal failure
	pending  map[string]struct{}
	inFlight bool
}

func NewRoleResolver(dir RoleDirectory, log *zap.Logger) *RoleResolver {
	return &RoleResolver{
		dir: dir,
		log: log,
		labels: map[string]string{
			SenderSystem: "System",
			SenderAdmin:  "Administrator",
		},
		pending: make(map[string]struct{}),
	}
}

// Lookup returns the memoized label for a sender id, if any.
func (r *RoleResolver) Lookup(id string) (string, RoleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if label, ok := r.labels[id]; ok {
		if label == "" {
			return "", RoleUnavailable
		}
		return label, RoleResolved
	}
	if _, ok := r.pending[id]; ok {
		return "", RoleLoading
	}
	return "", RoleUnknown
}

// Ensure requests labels for any of the given sender ids not yet known. It is
// a no-op while a batch is in flight; the triggering state is re-examined on
// the next call once the batch lands.
func (r *RoleResolver) Ensure(ctx context.Context, senderIDs []string) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return
	}
	var missing []string
	for _, id := range senderIDs {
		if id == "" {
			continue
		}
		if _, known := r.labels[id]; known {
			continue
		}
		if _, queued := r.pending[id]; queued {
			continue
		}
		r.pending[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	found, err := r.dir.RolesByIDs(ctx, missing)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false
	for _, id := range missing {
		delete(r.pending, id)
		if err != nil {
			// Terminal failure sentinel; the id is not re-requested this session.
			r.labels[id] = ""
			continue
		}
		r.labels[id] = found[id]
	}
	if err != nil {
		r.log.Warn("sender role lookup failed",
			zap.Int("ids", len(missing)),
			zap.Error(err))
	}
}
