package filetree

import (
	"context"
	"fmt"
	"sync"

	"github.com/devroom-labs/devroom-backend/internal/logging"
)

// Persistence is the durable backend for project snapshots. The postgres
// implementation lives in the projects repo; tests use an in-memory fake.
type Persistence interface {
	LoadTree(ctx context.Context, projectID string) (Tree, error)
	SaveTree(ctx context.Context, projectID string, tree Tree) error
}

// Archiver receives a copy of every successfully replaced snapshot.
// Archival is best-effort and never fails a Replace.
type Archiver interface {
	Archive(ctx context.Context, projectID string, tree Tree) error
}

// PersistenceError wraps a failed durable write so callers can surface it
// as a distinct error kind.
type PersistenceError struct {
	ProjectID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist file tree for project %s: %v", e.ProjectID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store holds the authoritative file tree per project. Replace is atomic
// whole-snapshot and serialized per project; concurrent replacements resolve
// last-write-wins with no partial merge.
type Store struct {
	persist  Persistence
	archiver Archiver

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(persist Persistence) *Store {
	return &Store{
		persist: persist,
		locks:   make(map[string]*sync.Mutex),
	}
}

// WithArchiver attaches a snapshot archiver. Call before serving traffic.
func (s *Store) WithArchiver(a Archiver) *Store {
	s.archiver = a
	return s
}

// Load returns the persisted snapshot, or an empty tree when none exists.
func (s *Store) Load(ctx context.Context, projectID string) (Tree, error) {
	tree, err := s.persist.LoadTree(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load file tree for project %s: %w", projectID, err)
	}
	if tree == nil {
		tree = Tree{}
	}
	return tree, nil
}

// Replace atomically overwrites the stored snapshot and returns once it is
// durably stored.
func (s *Store) Replace(ctx context.Context, projectID string, tree Tree) error {
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("invalid file tree: %w", err)
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	snapshot := tree.Clone()
	if err := s.persist.SaveTree(ctx, projectID, snapshot); err != nil {
		return &PersistenceError{ProjectID: projectID, Err: err}
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, projectID, snapshot); err != nil {
			logging.ForProject(projectID).LogError("archive_snapshot", err)
		}
	}

	return nil
}

func (s *Store) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}
