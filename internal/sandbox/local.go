package sandbox

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/logging"
)

const (
	readyPollInterval = 250 * time.Millisecond
	readyDeadline     = 30 * time.Second
)

// LocalRuntime materializes trees into a per-instance directory and runs the
// start command as a local child process. It is the development runtime; the
// isolation boundary in production is a remote runner reporting through the
// callback route.
type LocalRuntime struct {
	dir     string
	port    int
	onReady ReadyFunc

	mu       sync.Mutex
	proc     *exec.Cmd
	tornDown bool
}

func NewLocalRuntime(workDir, instanceID string, port int, onReady ReadyFunc) (*LocalRuntime, error) {
	dir := filepath.Join(workDir, "devroom-sandbox-"+instanceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	return &LocalRuntime{dir: dir, port: port, onReady: onReady}, nil
}

// Mount wipes the instance directory and writes every path/content pair.
func (r *LocalRuntime) Mount(ctx context.Context, tree filetree.Tree) error {
	if err := tree.Validate(); err != nil {
		return &MountError{Op: "mount", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tornDown {
		return &MountError{Op: "mount", Err: fmt.Errorf("runtime is torn down")}
	}

	// Replace wholesale: stale files from a previous mount must not leak
	// into the new tree.
	if err := os.RemoveAll(r.dir); err != nil {
		return &MountError{Op: "mount", Err: err}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return &MountError{Op: "mount", Err: err}
	}

	for path, contents := range tree {
		if err := ctx.Err(); err != nil {
			return &MountError{Op: "mount", Err: err}
		}

		full := filepath.Join(r.dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return &MountError{Op: "mount", Err: err}
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			return &MountError{Op: "mount", Err: err}
		}
	}

	return nil
}

// Run starts the command in the mounted directory and waits for its port to
// accept connections before reporting readiness.
func (r *LocalRuntime) Run(ctx context.Context, command []string) (*Handle, error) {
	if len(command) == 0 {
		return nil, &MountError{Op: "run", Err: fmt.Errorf("empty command")}
	}

	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		return nil, &MountError{Op: "run", Err: fmt.Errorf("runtime is torn down")}
	}
	if r.proc != nil && r.proc.Process != nil {
		// At most one running process per instance.
		_ = r.proc.Process.Kill()
		r.proc = nil
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", r.port))
	if err := cmd.Start(); err != nil {
		r.mu.Unlock()
		return nil, &MountError{Op: "run", Err: err}
	}
	r.proc = cmd
	r.mu.Unlock()

	if err := r.awaitReady(ctx); err != nil {
		r.mu.Lock()
		if r.proc != nil && r.proc.Process != nil {
			_ = r.proc.Process.Kill()
		}
		r.proc = nil
		r.mu.Unlock()
		return nil, &MountError{Op: "run", Err: err}
	}

	url := fmt.Sprintf("http://localhost:%d", r.port)
	if r.onReady != nil {
		r.onReady(r.port, url)
	}

	handle := &Handle{
		Port: r.port,
		URL:  url,
		stop: func() error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.proc != nil && r.proc.Process != nil {
				err := r.proc.Process.Kill()
				r.proc = nil
				return err
			}
			return nil
		},
	}
	return handle, nil
}

// Teardown kills any running process and removes the instance directory.
// Idempotent.
func (r *LocalRuntime) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tornDown {
		return nil
	}
	r.tornDown = true

	if r.proc != nil && r.proc.Process != nil {
		if err := r.proc.Process.Kill(); err != nil {
			logging.ForProject(r.dir).LogError("teardown_kill", err)
		}
		r.proc = nil
	}

	return os.RemoveAll(r.dir)
}

func (r *LocalRuntime) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(readyDeadline)
	addr := fmt.Sprintf("localhost:%d", r.port)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := net.DialTimeout("tcp", addr, readyPollInterval)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(readyPollInterval)
	}

	return fmt.Errorf("process did not become reachable on %s", addr)
}
