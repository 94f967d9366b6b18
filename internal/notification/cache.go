package notification

import (
	"sort"
	"sync"
)

// Inbox is the in-memory cache of matched notifications for one principal's
// session: deduplicated by id and kept sorted by issued_at descending after
// every mutation. Readers never observe an unsorted intermediate state.
type Inbox struct {
	mu      sync.RWMutex
	entries []*Notification
	ids     map[string]struct{}
}

func NewInbox() *Inbox {
	return &Inbox{ids: make(map[string]struct{})}
}

// ReplaceAll swaps the entire contents for a fresh batch-load result. The new
// slice is sorted and deduplicated before it is published.
func (b *Inbox) ReplaceAll(notifications []*Notification) {
	sorted := append([]*Notification(nil), notifications...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IssuedAt.After(sorted[j].IssuedAt)
	})
	ids := make(map[string]struct{}, len(sorted))
	deduped := sorted[:0]
	for _, n := range sorted {
		id := n.ID.Hex()
		if _, dup := ids[id]; dup {
			continue
		}
		ids[id] = struct{}{}
		deduped = append(deduped, n)
	}

	b.mu.Lock()
	b.entries = deduped
	b.ids = ids
	b.mu.Unlock()
}

// Merge inserts a notification at its sorted position, newest first. Returns
// false without mutating when an entry with the same id already exists, which
// makes the merge idempotent across overlapping batch loads and feed events.
// Entries with equal timestamps keep their arrival order.
func (b *Inbox) Merge(n *Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mergeLocked(n)
}

// MergeAll merges a whole batch under one lock, so readers observe either the
// inbox before the batch or after it, never a half-applied load.
func (b *Inbox) MergeAll(notifications []*Notification) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	merged := 0
	for _, n := range notifications {
		if b.mergeLocked(n) {
			merged++
		}
	}
	return merged
}

func (b *Inbox) mergeLocked(n *Notification) bool {
	id := n.ID.Hex()
	if _, dup := b.ids[id]; dup {
		return false
	}
	i := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].IssuedAt.Before(n.IssuedAt)
	})
	b.entries = append(b.entries, nil)
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = n
	b.ids[id] = struct{}{}
	return true
}

// Contains reports whether an entry with the given id is present.
func (b *Inbox) Contains(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[id]
	return ok
}

// List returns a copy of the current entries, newest first.
func (b *Inbox) List() []*Notification {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Notification(nil), b.entries...)
}

// Senders returns the distinct sender ids currently present.
func (b *Inbox) Senders() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{}, len(b.entries))
	var senders []string
	for _, n := range b.entries {
		if n.Sender == "" {
			continue
		}
		if _, dup := seen[n.Sender]; dup {
			continue
		}
		seen[n.Sender] = struct{}{}
		senders = append(senders, n.Sender)
	}
	return senders
}

// Len returns the number of cached entries.
func (b *Inbox) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear drops every entry. Called when the owning principal changes.
func (b *Inbox) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.ids = make(map[string]struct{})
	b.mu.Unlock()
}
