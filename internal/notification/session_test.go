package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"NoticeHub/internal/audience"
)

type fakeSub struct {
	fn        func(Event)
	cancelled bool
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeFeed) Subscribe(ctx context.Context, fn func(Event)) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	sub := &fakeSub{fn: fn}
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		sub.cancelled = true
		f.mu.Unlock()
	}, nil
}

// Emit delivers an event through the most recent subscription.
func (f *fakeFeed) Emit(ev Event) {
	f.mu.Lock()
	sub := f.subs[len(f.subs)-1]
	f.mu.Unlock()
	sub.fn(ev)
}

func newTestSession(src *fakeSource, feed *fakeFeed, device *fakeDevice) *Session {
	loader := NewBatchLoader(src, zap.NewNop(), 50)
	dispatcher := NewDispatcher(device, zap.NewNop())
	roles := NewRoleResolver(&fakeDirectory{roles: map[string]string{}}, zap.NewNop())
	sess := NewSession(loader, feed, dispatcher, roles, zap.NewNop())
	sess.now = func() time.Time { return testEpoch }
	return sess
}

func TestSessionBatchLoadThenLiveMerge(t *testing.T) {
	a := note("A", 3*time.Minute)
	b := note("B", time.Minute)
	c := note("C", 2*time.Minute)

	src := &fakeSource{notes: []*Notification{a, b}}
	feed := &fakeFeed{}
	device := &fakeDevice{granted: true}
	sess := newTestSession(src, feed, device)

	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))
	assert.Equal(t, []string{"A", "B"}, titles(sess.Notifications()))

	feed.Emit(Event{Op: OpCreate, Doc: c})
	feed.Emit(Event{Op: OpCreate, Doc: a}) // duplicate of a batch entry

	assert.Equal(t, []string{"A", "C", "B"}, titles(sess.Notifications()))
	// Only the genuinely new notification raised a device alert.
	assert.Equal(t, []string{"C"}, device.notified)
	assert.NoError(t, sess.LastError())
}

func TestSessionDropsNonMatchingEvents(t *testing.T) {
	src := &fakeSource{}
	feed := &fakeFeed{}
	device := &fakeDevice{granted: true}
	sess := newTestSession(src, feed, device)
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))

	other := note("other class", time.Minute)
	other.Targets = []string{"class:12C"}
	feed.Emit(Event{Op: OpCreate, Doc: other})

	expired := note("too late", 2*time.Minute)
	expired.ValidUntil = testEpoch.Add(-time.Second)
	feed.Emit(Event{Op: OpCreate, Doc: expired})

	empty := note("empty targets", 3*time.Minute)
	empty.Targets = nil
	feed.Emit(Event{Op: OpCreate, Doc: empty})

	feed.Emit(Event{Op: OpCreate, Doc: nil}) // malformed payload

	assert.Empty(t, sess.Notifications())
	assert.Empty(t, device.notified)
}

func TestSessionIgnoresUpdateAndDeleteEvents(t *testing.T) {
	src := &fakeSource{}
	feed := &fakeFeed{}
	device := &fakeDevice{granted: true}
	sess := newTestSession(src, feed, device)
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))

	n := note("touched", time.Minute)
	feed.Emit(Event{Op: OpUpdate, Doc: n})
	feed.Emit(Event{Op: OpDelete, Doc: nil})

	assert.Empty(t, sess.Notifications())
}

func TestSessionRefreshFailureKeepsPreviousInbox(t *testing.T) {
	a := note("A", time.Minute)
	src := &fakeSource{notes: []*Notification{a}}
	sess := newTestSession(src, &fakeFeed{}, &fakeDevice{granted: true})
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))
	require.Equal(t, 1, len(sess.Notifications()))

	src.err = errors.New("query failed")
	err := sess.Refresh(context.Background())
	require.Error(t, err)

	// Recoverable error state: previous results stay visible.
	assert.Equal(t, []string{"A"}, titles(sess.Notifications()))
	assert.Error(t, sess.LastError())

	src.err = nil
	require.NoError(t, sess.Refresh(context.Background()))
	assert.NoError(t, sess.LastError())
}

func TestSessionRecipientChangeRetiresOldSubscription(t *testing.T) {
	src := &fakeSource{}
	feed := &fakeFeed{}
	device := &fakeDevice{granted: true}
	sess := newTestSession(src, feed, device)

	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))
	oldSub := feed.subs[0]

	guardian := audience.Recipient{
		ID:    "par-1",
		Roles: []string{"guardian"},
		Dependents: []audience.Member{
			{ID: "stu-9", Class: "9A"},
		},
	}
	require.NoError(t, sess.SetRecipient(context.Background(), guardian))
	require.Len(t, feed.subs, 2)
	assert.True(t, oldSub.cancelled)

	// An event still arriving through the stale subscription must not merge
	// or alert on behalf of the old attribute set.
	stale := note("stale epoch", time.Minute)
	oldSub.fn(Event{Op: OpCreate, Doc: stale})
	assert.Empty(t, sess.Notifications())
	assert.Empty(t, device.notified)

	// The new epoch delivers normally.
	fresh := note("for 9A", 2*time.Minute)
	fresh.Targets = []string{"class:9A"}
	feed.Emit(Event{Op: OpCreate, Doc: fresh})
	assert.Equal(t, []string{"for 9A"}, titles(sess.Notifications()))
}

func TestSessionSubscribeFailureIsRecoverable(t *testing.T) {
	src := &fakeSource{}
	feed := &fakeFeed{err: errors.New("stream unavailable")}
	sess := newTestSession(src, feed, &fakeDevice{})

	err := sess.SetRecipient(context.Background(), testRecipient())
	require.Error(t, err)
	assert.Error(t, sess.LastError())
}

func TestSessionCloseReleasesSubscription(t *testing.T) {
	feed := &fakeFeed{}
	sess := newTestSession(&fakeSource{}, feed, &fakeDevice{})
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))

	sess.Close()
	assert.True(t, feed.subs[0].cancelled)

	// Events after teardown are discarded.
	feed.subs[0].fn(Event{Op: OpCreate, Doc: note("late", time.Minute)})
	assert.Empty(t, sess.Notifications())
}

// gatedSource serves one scripted response per call. A call whose gate channel
// is set blocks until the test closes it, which lets a test hold one batch
// query in flight while later queries and feed events proceed.
type gatedSource struct {
	mu      sync.Mutex
	results [][]*Notification
	gates   []chan struct{}
	calls   int
}

func (g *gatedSource) FindForRecipient(ctx context.Context, tokens []string, now time.Time, limit int64) ([]*Notification, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()
	if i < len(g.gates) && g.gates[i] != nil {
		<-g.gates[i]
	}
	if i < len(g.results) {
		return g.results[i], nil
	}
	return nil, nil
}

func newGatedSession(src *gatedSource, feed *fakeFeed, device *fakeDevice) *Session {
	loader := NewBatchLoader(src, zap.NewNop(), 50)
	dispatcher := NewDispatcher(device, zap.NewNop())
	roles := NewRoleResolver(&fakeDirectory{roles: map[string]string{}}, zap.NewNop())
	sess := NewSession(loader, feed, dispatcher, roles, zap.NewNop())
	sess.now = func() time.Time { return testEpoch }
	return sess
}

func TestSessionStaleOverlappingRefreshIsDiscarded(t *testing.T) {
	a := note("A", time.Minute)
	newer := note("New", 2*time.Minute)

	slow := make(chan struct{})
	src := &gatedSource{
		results: [][]*Notification{
			{a},        // initial load
			{a},        // first refresh, held in flight
			{newer, a}, // second refresh, completes first
		},
		gates: []chan struct{}{nil, slow, nil},
	}
	sess := newGatedSession(src, &fakeFeed{}, &fakeDevice{granted: true})
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sess.Refresh(context.Background())
	}()
	// Wait until the first refresh is parked inside the query.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, sess.Refresh(context.Background()))
	require.Equal(t, []string{"New", "A"}, titles(sess.Notifications()))

	// The first refresh now returns its older response. It was superseded, so
	// the inbox must not regress to the pre-"New" state.
	close(slow)
	wg.Wait()
	assert.Equal(t, []string{"New", "A"}, titles(sess.Notifications()))
}

func TestSessionLiveEventSurvivesOverlappingLoad(t *testing.T) {
	a := note("A", time.Minute)
	c := note("C", 2*time.Minute)

	slow := make(chan struct{})
	src := &gatedSource{
		results: [][]*Notification{{a}, {a}},
		gates:   []chan struct{}{nil, slow},
	}
	feed := &fakeFeed{}
	device := &fakeDevice{granted: true}
	sess := newGatedSession(src, feed, device)
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sess.Refresh(context.Background())
	}()
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls == 2
	}, time.Second, time.Millisecond)

	// C arrives over the live feed while the refresh query is still in flight.
	feed.Emit(Event{Op: OpCreate, Doc: c})
	require.Equal(t, []string{"C", "A"}, titles(sess.Notifications()))

	// The refresh result predates C; publishing it must not evict C.
	close(slow)
	wg.Wait()
	assert.Equal(t, []string{"C", "A"}, titles(sess.Notifications()))
	assert.Equal(t, []string{"C"}, device.notified)
}

func TestSessionNotificationsHidesEntriesThatExpired(t *testing.T) {
	fresh := note("fresh", 2*time.Minute)
	shortLived := note("short-lived", time.Minute)
	shortLived.ValidUntil = testEpoch.Add(time.Hour)

	src := &fakeSource{notes: []*Notification{fresh, shortLived}}
	sess := newTestSession(src, &fakeFeed{}, &fakeDevice{granted: true})
	require.NoError(t, sess.SetRecipient(context.Background(), testRecipient()))
	require.Equal(t, []string{"fresh", "short-lived"}, titles(sess.Notifications()))

	// Time passes beyond the shorter validity window; the cached entry is no
	// longer shown even though no reload pruned it.
	sess.now = func() time.Time { return testEpoch.Add(2 * time.Hour) }
	assert.Equal(t, []string{"fresh"}, titles(sess.Notifications()))
}

func TestSessionSenderRolePassthrough(t *testing.T) {
	sess := newTestSession(&fakeSource{}, &fakeFeed{}, &fakeDevice{})
	label, state := sess.SenderRole(SenderSystem)
	assert.Equal(t, RoleResolved, state)
	assert.Equal(t, "System", label)
}
