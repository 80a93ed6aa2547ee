package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/ai"
	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/realtime"
	"golang.org/x/time/rate"
)

// Broadcaster fans a message out to every subscriber of a project's room.
// Satisfied by realtime.Hub.
type Broadcaster interface {
	Publish(projectID string, msg realtime.Message) realtime.Message
}

// TreeStore replaces a project's file tree snapshot. Satisfied by
// filetree.Store.
type TreeStore interface {
	Replace(ctx context.Context, projectID string, tree filetree.Tree) error
}

// SandboxPool mounts generated trees into per-project runtime instances.
// Satisfied by sandbox.Pool.
type SandboxPool interface {
	Mount(ctx context.Context, projectID string, tree filetree.Tree) error
	Release(projectID string)
}

// Deps carries everything a room needs to run a session.
type Deps struct {
	Broadcast Broadcaster
	Generator ai.Generator
	Trees     TreeStore
	Sandboxes SandboxPool

	GenTimeout time.Duration
	AIRate     rate.Limit
	AIBurst    int
	QueueSize  int
}

func (d *Deps) applyDefaults() {
	if d.GenTimeout <= 0 {
		d.GenTimeout = 60 * time.Second
	}
	if d.AIRate <= 0 {
		d.AIRate = rate.Every(2 * time.Second)
	}
	if d.AIBurst <= 0 {
		d.AIBurst = 3
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 16
	}
}

// Registry owns the live rooms, one per project with recent activity. It is
// the inbound side of the websocket layer and the notification target for
// sandbox readiness callbacks.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(deps Deps) *Registry {
	deps.applyDefaults()
	return &Registry{
		deps:  deps,
		rooms: make(map[string]*Room),
	}
}

// HandleMessage routes an inbound websocket message to its project's room,
// creating the room on first traffic.
func (g *Registry) HandleMessage(ctx context.Context, msg realtime.Message) {
	if msg.ProjectID == "" {
		return
	}
	g.room(msg.ProjectID).HandleMessage(ctx, msg)
}

// SandboxReady broadcasts a readiness notice so clients can point their
// preview at the running instance.
func (g *Registry) SandboxReady(projectID string, port int, url string) {
	g.room(projectID).systemNotice(KindSandboxReady,
		fmt.Sprintf("sandbox is ready on port %d at %s", port, url))
}

// SweepIdle closes rooms with no traffic inside the window and releases
// their sandbox instances. Returns the number of rooms closed.
func (g *Registry) SweepIdle(window time.Duration) int {
	cutoff := time.Now().Add(-window)

	g.mu.Lock()
	victims := make(map[string]*Room)
	for id, room := range g.rooms {
		if room.idleSince().Before(cutoff) {
			victims[id] = room
			delete(g.rooms, id)
		}
	}
	g.mu.Unlock()

	for id, room := range victims {
		room.Close()
		if g.deps.Sandboxes != nil {
			g.deps.Sandboxes.Release(id)
		}
	}
	return len(victims)
}

// Close shuts every room down. Used on server shutdown.
func (g *Registry) Close() {
	g.mu.Lock()
	all := g.rooms
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()

	for id, room := range all {
		room.Close()
		if g.deps.Sandboxes != nil {
			g.deps.Sandboxes.Release(id)
		}
	}
}

func (g *Registry) room(projectID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[projectID]
	if !ok {
		room = newRoom(projectID, g.deps)
		g.rooms[projectID] = room
	}
	return room
}
