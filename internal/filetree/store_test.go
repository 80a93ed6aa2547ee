package filetree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPersistence is an in-memory Persistence backend for tests.
type memPersistence struct {
	mu    sync.Mutex
	trees map[string]Tree
	fail  error
}

func newMemPersistence() *memPersistence {
	return &memPersistence{trees: make(map[string]Tree)}
}

func (m *memPersistence) LoadTree(_ context.Context, projectID string) (Tree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return m.trees[projectID].Clone(), nil
}

func (m *memPersistence) SaveTree(_ context.Context, projectID string, tree Tree) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.trees[projectID] = tree.Clone()
	return nil
}

func TestStore_ReplaceAndLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("replace then load round-trips the snapshot", func(t *testing.T) {
		store := NewStore(newMemPersistence())

		tree := Tree{
			"package.json": `{"name":"app"}`,
			"src/index.js": "console.log('hi')",
		}
		require.NoError(t, store.Replace(ctx, "proj-1", tree))

		got, err := store.Load(ctx, "proj-1")
		require.NoError(t, err)
		assert.Equal(t, tree, got)
	})

	t.Run("load of unknown project returns an empty tree", func(t *testing.T) {
		store := NewStore(newMemPersistence())

		got, err := store.Load(ctx, "never-seen")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("replace overwrites wholesale, stale paths do not survive", func(t *testing.T) {
		store := NewStore(newMemPersistence())

		require.NoError(t, store.Replace(ctx, "proj-1", Tree{"a.txt": "1", "b.txt": "2"}))
		require.NoError(t, store.Replace(ctx, "proj-1", Tree{"c.txt": "3"}))

		got, err := store.Load(ctx, "proj-1")
		require.NoError(t, err)
		assert.Equal(t, Tree{"c.txt": "3"}, got)
	})

	t.Run("caller mutation after replace does not leak into the store", func(t *testing.T) {
		store := NewStore(newMemPersistence())

		tree := Tree{"a.txt": "1"}
		require.NoError(t, store.Replace(ctx, "proj-1", tree))
		tree["a.txt"] = "mutated"

		got, err := store.Load(ctx, "proj-1")
		require.NoError(t, err)
		assert.Equal(t, "1", got["a.txt"])
	})

	t.Run("projects do not share snapshots", func(t *testing.T) {
		store := NewStore(newMemPersistence())

		require.NoError(t, store.Replace(ctx, "proj-1", Tree{"one.txt": "1"}))
		require.NoError(t, store.Replace(ctx, "proj-2", Tree{"two.txt": "2"}))

		got1, err := store.Load(ctx, "proj-1")
		require.NoError(t, err)
		got2, err := store.Load(ctx, "proj-2")
		require.NoError(t, err)
		assert.Equal(t, Tree{"one.txt": "1"}, got1)
		assert.Equal(t, Tree{"two.txt": "2"}, got2)
	})
}

func TestStore_ReplaceValidation(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMemPersistence())

	cases := []struct {
		name string
		tree Tree
	}{
		{"absolute path", Tree{"/etc/passwd": "x"}},
		{"parent escape", Tree{"../outside.txt": "x"}},
		{"embedded escape", Tree{"src/../../outside.txt": "x"}},
		{"empty path", Tree{"": "x"}},
		{"empty segment", Tree{"src//index.js": "x"}},
		{"nul byte", Tree{"src/\x00index.js": "x"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Replace(ctx, "proj-1", tc.tree)
			assert.Error(t, err)
		})
	}

	t.Run("rejected tree is not persisted", func(t *testing.T) {
		got, err := store.Load(ctx, "proj-1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestStore_PersistenceError(t *testing.T) {
	ctx := context.Background()

	persist := newMemPersistence()
	persist.fail = fmt.Errorf("connection refused")
	store := NewStore(persist)

	err := store.Replace(ctx, "proj-1", Tree{"a.txt": "1"})
	require.Error(t, err)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "proj-1", perr.ProjectID)
}

func TestStore_ConcurrentReplace(t *testing.T) {
	ctx := context.Background()
	persist := newMemPersistence()
	store := NewStore(persist)

	// Hammer the same project; every load afterwards must observe exactly
	// one of the written snapshots, never a blend.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tree := Tree{fmt.Sprintf("file-%d.txt", n): fmt.Sprintf("%d", n)}
			_ = store.Replace(ctx, "proj-1", tree)
		}(i)
	}
	wg.Wait()

	got, err := store.Load(ctx, "proj-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_Archiver(t *testing.T) {
	ctx := context.Background()

	t.Run("successful replace is archived", func(t *testing.T) {
		objects := NewInMemoryObjectStore()
		store := NewStore(newMemPersistence()).
			WithArchiver(NewSnapshotArchiver(objects, "snapshots"))

		require.NoError(t, store.Replace(ctx, "proj-1", Tree{"a.txt": "1"}))

		keys := objects.Keys()
		require.Len(t, keys, 1)
		assert.Contains(t, keys[0], "snapshots/proj-1/")
	})

	t.Run("failed persist is not archived", func(t *testing.T) {
		objects := NewInMemoryObjectStore()
		persist := newMemPersistence()
		persist.fail = fmt.Errorf("down")
		store := NewStore(persist).
			WithArchiver(NewSnapshotArchiver(objects, "snapshots"))

		require.Error(t, store.Replace(ctx, "proj-1", Tree{"a.txt": "1"}))
		assert.Empty(t, objects.Keys())
	})

	t.Run("archive failure does not fail the replace", func(t *testing.T) {
		persist := newMemPersistence()
		store := NewStore(persist).WithArchiver(failingArchiver{})

		require.NoError(t, store.Replace(ctx, "proj-1", Tree{"a.txt": "1"}))

		got, err := store.Load(ctx, "proj-1")
		require.NoError(t, err)
		assert.Equal(t, Tree{"a.txt": "1"}, got)
	})
}

type failingArchiver struct{}

func (failingArchiver) Archive(context.Context, string, Tree) error {
	return fmt.Errorf("bucket unavailable")
}
