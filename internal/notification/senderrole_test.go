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
)

type fakeDirectory struct {
	mu      sync.Mutex
	roles   map[string]string
	err     error
	calls   int
	batches [][]string
	block   chan struct{} // when set, RolesByIDs waits before returning
}

func (d *fakeDirectory) RolesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	d.mu.Lock()
	d.calls++
	d.batches = append(d.batches, append([]string(nil), ids...))
	block := d.block
	d.mu.Unlock()
	if block != nil {
		<-block
	}
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if role, ok := d.roles[id]; ok {
			out[id] = role
		}
	}
	return out, nil
}

func TestRoleResolverSentinels(t *testing.T) {
	dir := &fakeDirectory{}
	r := NewRoleResolver(dir, zap.NewNop())

	label, state := r.Lookup(SenderSystem)
	assert.Equal(t, RoleResolved, state)
	assert.Equal(t, "System", label)

	label, state = r.Lookup(SenderAdmin)
	assert.Equal(t, RoleResolved, state)
	assert.Equal(t, "Administrator", label)

	// Sentinels never hit the directory.
	r.Ensure(context.Background(), []string{SenderSystem, SenderAdmin})
	assert.Zero(t, dir.calls)
}

func TestRoleResolverBatchesOneRequest(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]string{"u1": "teacher", "u2": "staff"}}
	r := NewRoleResolver(dir, zap.NewNop())

	r.Ensure(context.Background(), []string{"u1", "u2", "u1", ""})

	require.Equal(t, 1, dir.calls)
	assert.ElementsMatch(t, []string{"u1", "u2"}, dir.batches[0])

	label, state := r.Lookup("u1")
	assert.Equal(t, RoleResolved, state)
	assert.Equal(t, "teacher", label)
}

func TestRoleResolverMemoizesFailuresAsTerminal(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("lookup unavailable")}
	r := NewRoleResolver(dir, zap.NewNop())

	r.Ensure(context.Background(), []string{"u1", "u2"})
	require.Equal(t, 1, dir.calls)

	for _, id := range []string{"u1", "u2"} {
		label, state := r.Lookup(id)
		assert.Equal(t, RoleUnavailable, state)
		assert.Empty(t, label)
	}

	// A terminal null must not trigger a second lookup request.
	r.Ensure(context.Background(), []string{"u1"})
	assert.Equal(t, 1, dir.calls)
}

func TestRoleResolverUnmatchedIDsBecomeUnavailable(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]string{"u1": "teacher"}}
	r := NewRoleResolver(dir, zap.NewNop())

	r.Ensure(context.Background(), []string{"u1", "ghost"})

	_, state := r.Lookup("ghost")
	assert.Equal(t, RoleUnavailable, state)

	r.Ensure(context.Background(), []string{"ghost"})
	assert.Equal(t, 1, dir.calls)
}

func TestRoleResolverNoOverlappingRequests(t *testing.T) {
	dir := &fakeDirectory{roles: map[string]string{"u1": "teacher", "u2": "staff"}, block: make(chan struct{})}
	r := NewRoleResolver(dir, zap.NewNop())

	done := make(chan struct{})
	go func() {
		r.Ensure(context.Background(), []string{"u1"})
		close(done)
	}()

	// Wait until the first batch is in flight.
	for {
		dir.mu.Lock()
		started := dir.calls == 1
		dir.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, state := r.Lookup("u1")
	assert.Equal(t, RoleLoading, state)

	// Overlapping trigger while a batch is in flight is a no-op.
	r.Ensure(context.Background(), []string{"u2"})
	assert.Equal(t, 1, dir.calls)

	close(dir.block)
	<-done

	// The next trigger picks up what the in-flight batch did not cover.
	dir.mu.Lock()
	dir.block = nil
	dir.mu.Unlock()
	r.Ensure(context.Background(), []string{"u2"})
	assert.Equal(t, 2, dir.calls)

	label, st := r.Lookup("u2")
	assert.Equal(t, RoleResolved, st)
	assert.Equal(t, "staff", label)
}
