package sandbox

import (
	"context"
	"fmt"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
)

// Runtime is the mount/execute contract of one isolated execution
// environment. An instance holds one mounted snapshot and at most one
// running process.
type Runtime interface {
	// Mount materializes the tree into the instance's filesystem view,
	// replacing any previous mount wholesale.
	Mount(ctx context.Context, tree filetree.Tree) error
	// Run starts a process against the mounted tree and returns once it is
	// reachable.
	Run(ctx context.Context, command []string) (*Handle, error)
	// Teardown releases all resources. Idempotent.
	Teardown() error
}

// Handle exposes the reachable endpoint of a running sandbox process.
type Handle struct {
	Port int
	URL  string

	stop func() error
}

// Stop terminates the underlying process.
func (h *Handle) Stop() error {
	if h == nil || h.stop == nil {
		return nil
	}
	return h.stop()
}

// ReadyFunc is invoked when a sandbox process signals readiness. Readiness
// detection itself is environment-specific; remote runtimes report through
// the callback route instead.
type ReadyFunc func(port int, url string)

// MountError wraps a failed mount or run. Non-fatal: chat flow continues,
// the failure is surfaced as a system notice.
type MountError struct {
	Op  string
	Err error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("sandbox %s failed: %v", e.Op, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }
