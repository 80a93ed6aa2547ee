package sandbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	mu        sync.Mutex
	mounts    int
	tornDown  bool
	mountErr  error
	lastsTree filetree.Tree
}

func (f *fakeRuntime) Mount(_ context.Context, tree filetree.Tree) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mountErr != nil {
		return f.mountErr
	}
	f.mounts++
	f.lastsTree = tree.Clone()
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, _ []string) (*Handle, error) {
	return &Handle{Port: 9100, URL: "http://localhost:9100"}, nil
}

func (f *fakeRuntime) Teardown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tornDown = true
	return nil
}

func TestPool_MountReusesInstance(t *testing.T) {
	created := make(map[string]*fakeRuntime)
	pool := NewPool(func(projectID string) (Runtime, error) {
		rt := &fakeRuntime{}
		created[projectID] = rt
		return rt, nil
	})
	ctx := context.Background()

	require.NoError(t, pool.Mount(ctx, "proj-1", filetree.Tree{"a.js": "1"}))
	require.NoError(t, pool.Mount(ctx, "proj-1", filetree.Tree{"b.js": "2"}))
	require.NoError(t, pool.Mount(ctx, "proj-2", filetree.Tree{"c.js": "3"}))

	require.Len(t, created, 2)
	assert.Equal(t, 2, created["proj-1"].mounts)
	assert.Equal(t, 1, created["proj-2"].mounts)

	// Remount replaces the tree in place.
	assert.Equal(t, filetree.Tree{"b.js": "2"}, created["proj-1"].lastsTree)
}

func TestPool_Run(t *testing.T) {
	rt := &fakeRuntime{}
	pool := NewPool(func(string) (Runtime, error) { return rt, nil })
	ctx := context.Background()

	require.NoError(t, pool.Mount(ctx, "proj-1", filetree.Tree{"a.js": "1"}))

	handle, err := pool.Run(ctx, "proj-1", []string{"node", "a.js"})
	require.NoError(t, err)
	assert.Equal(t, 9100, handle.Port)
	assert.Equal(t, "http://localhost:9100", handle.URL)
}

func TestPool_FactoryFailure(t *testing.T) {
	pool := NewPool(func(string) (Runtime, error) {
		return nil, fmt.Errorf("out of capacity")
	})

	err := pool.Mount(context.Background(), "proj-1", filetree.Tree{})
	require.Error(t, err)

	var merr *MountError
	assert.ErrorAs(t, err, &merr)
}

func TestPool_Release(t *testing.T) {
	rt := &fakeRuntime{}
	pool := NewPool(func(string) (Runtime, error) { return rt, nil })

	require.NoError(t, pool.Mount(context.Background(), "proj-1", filetree.Tree{}))
	pool.Release("proj-1")
	assert.True(t, rt.tornDown)

	// Releasing again or releasing an unknown project is a no-op.
	pool.Release("proj-1")
	pool.Release("never-mounted")
}

func TestPool_SweepIdle(t *testing.T) {
	runtimes := make(map[string]*fakeRuntime)
	pool := NewPool(func(projectID string) (Runtime, error) {
		rt := &fakeRuntime{}
		runtimes[projectID] = rt
		return rt, nil
	})
	ctx := context.Background()

	require.NoError(t, pool.Mount(ctx, "proj-1", filetree.Tree{}))
	require.NoError(t, pool.Mount(ctx, "proj-2", filetree.Tree{}))

	// Nothing is older than an hour.
	assert.Equal(t, 0, pool.SweepIdle(time.Hour))
	assert.False(t, runtimes["proj-1"].tornDown)

	// Everything is older than zero.
	assert.Equal(t, 2, pool.SweepIdle(0))
	assert.True(t, runtimes["proj-1"].tornDown)
	assert.True(t, runtimes["proj-2"].tornDown)

	// Swept projects get a fresh instance on next mount.
	require.NoError(t, pool.Mount(ctx, "proj-1", filetree.Tree{}))
	assert.Equal(t, 0, pool.SweepIdle(time.Hour))
}

func TestPool_TeardownAll(t *testing.T) {
	runtimes := make(map[string]*fakeRuntime)
	pool := NewPool(func(projectID string) (Runtime, error) {
		rt := &fakeRuntime{}
		runtimes[projectID] = rt
		return rt, nil
	})
	ctx := context.Background()

	require.NoError(t, pool.Mount(ctx, "proj-1", filetree.Tree{}))
	require.NoError(t, pool.Mount(ctx, "proj-2", filetree.Tree{}))

	pool.TeardownAll()
	for id, rt := range runtimes {
		assert.True(t, rt.tornDown, "runtime %s not torn down", id)
	}
}
