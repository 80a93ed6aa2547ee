package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/logging"
)

// Factory builds a runtime for a project session.
type Factory func(projectID string) (Runtime, error)

// Pool keeps one sandbox instance per active project session. Instances are
// created on first mount, replaced in place on remount, and destroyed when
// the session ends or the idle sweeper claims them.
type Pool struct {
	factory Factory

	mu        sync.Mutex
	instances map[string]*poolEntry
}

type poolEntry struct {
	runtime  Runtime
	lastUsed time.Time
}

func NewPool(factory Factory) *Pool {
	return &Pool{
		factory:   factory,
		instances: make(map[string]*poolEntry),
	}
}

// Mount materializes the tree into the project's instance, creating the
// instance on first use.
func (p *Pool) Mount(ctx context.Context, projectID string, tree filetree.Tree) error {
	entry, err := p.entry(projectID)
	if err != nil {
		return &MountError{Op: "mount", Err: err}
	}

	if err := entry.runtime.Mount(ctx, tree); err != nil {
		return err
	}

	p.mu.Lock()
	entry.lastUsed = time.Now()
	p.mu.Unlock()
	return nil
}

// Run starts the project's process against its mounted tree.
func (p *Pool) Run(ctx context.Context, projectID string, command []string) (*Handle, error) {
	entry, err := p.entry(projectID)
	if err != nil {
		return nil, &MountError{Op: "run", Err: err}
	}

	handle, err := entry.runtime.Run(ctx, command)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	entry.lastUsed = time.Now()
	p.mu.Unlock()
	return handle, nil
}

// Release tears down the project's instance if one exists.
func (p *Pool) Release(projectID string) {
	p.mu.Lock()
	entry, ok := p.instances[projectID]
	delete(p.instances, projectID)
	p.mu.Unlock()

	if ok {
		if err := entry.runtime.Teardown(); err != nil {
			logging.ForProject(projectID).LogError("sandbox_teardown", err)
		}
	}
}

// SweepIdle tears down instances unused for longer than ttl. Returns the
// number of instances reclaimed.
func (p *Pool) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	p.mu.Lock()
	victims := make(map[string]*poolEntry)
	for id, entry := range p.instances {
		if entry.lastUsed.Before(cutoff) {
			victims[id] = entry
			delete(p.instances, id)
		}
	}
	p.mu.Unlock()

	for id, entry := range victims {
		if err := entry.runtime.Teardown(); err != nil {
			logging.ForProject(id).LogError("sandbox_sweep", err)
		}
	}
	return len(victims)
}

// TeardownAll releases every instance. Used on shutdown.
func (p *Pool) TeardownAll() {
	p.mu.Lock()
	all := p.instances
	p.instances = make(map[string]*poolEntry)
	p.mu.Unlock()

	for id, entry := range all {
		if err := entry.runtime.Teardown(); err != nil {
			logging.ForProject(id).LogError("sandbox_teardown", err)
		}
	}
}

func (p *Pool) entry(projectID string) (*poolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.instances[projectID]
	if ok {
		return entry, nil
	}

	rt, err := p.factory(projectID)
	if err != nil {
		return nil, err
	}
	entry = &poolEntry{runtime: rt, lastUsed: time.Now()}
	p.instances[projectID] = entry
	return entry, nil
}
