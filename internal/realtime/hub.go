package realtime

import (
	"fmt"
	"sync"

	"github.com/devroom-labs/devroom-backend/internal/logging"
)

// Message is the wire shape carried over the project room. The same shape is
// rebroadcast verbatim to every member; AI responses carry the JSON-encoded
// payload string in Message with the reserved AI sender.
type Message struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
	Sender    Sender `json:"sender"`
	Message   string `json:"message"`
	Target    string `json:"target,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
}

type Sender struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

const (
	TypeProjectMessage = "project-message"
	TypeSystemNotice   = "system-notice"

	// TargetAI routes a message through the orchestrator. This explicit
	// discriminator replaces sender-id string matching on inbound traffic.
	TargetAI = "ai"
)

// AISender is the reserved synthetic sender for generated responses.
var AISender = Sender{ID: "ai", Email: "ai@devroom.dev"}

// ConnectionError wraps a transport-level join/publish failure. Recoverable:
// the client retries.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("channel %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Subscriber is one connected participant's ordered delivery queue.
type Subscriber struct {
	ID string
	ch chan Message
}

func NewSubscriber(id string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 64
	}
	return &Subscriber{ID: id, ch: make(chan Message, buffer)}
}

// C is the subscriber's delivery channel. Messages arrive in room publish
// order.
func (s *Subscriber) C() <-chan Message { return s.ch }

// Hub is the per-project publish/subscribe fabric. Rooms are created on
// first join and kept for the session lifetime.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	mirror *EventMirror
}

type room struct {
	projectID string

	mu      sync.Mutex
	seq     int64
	members map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// WithEventMirror attaches a redis mirror publishing every broadcast to an
// external channel. Call before serving traffic.
func (h *Hub) WithEventMirror(m *EventMirror) *Hub {
	h.mirror = m
	return h
}

// Join registers a subscriber as a listener of the project room. Idempotent
// per subscriber.
func (h *Hub) Join(projectID string, sub *Subscriber) {
	r := h.room(projectID)

	r.mu.Lock()
	r.members[sub] = struct{}{}
	r.mu.Unlock()

	if h.mirror != nil {
		h.mirror.MemberJoined(projectID, sub.ID)
	}
}

// Leave deregisters a subscriber. Messages already dispatched to its queue
// are not retracted.
func (h *Hub) Leave(projectID string, sub *Subscriber) {
	h.mu.RLock()
	r, ok := h.rooms[projectID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.members, sub)
	r.mu.Unlock()

	if h.mirror != nil {
		h.mirror.MemberLeft(projectID, sub.ID)
	}
}

// Publish appends the message to the room's logical sequence and delivers it
// to every currently joined subscriber in publish order. Publishing to a room
// with zero listeners succeeds; catch-up is an external concern.
func (h *Hub) Publish(projectID string, msg Message) Message {
	r := h.room(projectID)

	r.mu.Lock()
	r.seq++
	msg.Seq = r.seq
	msg.ProjectID = projectID

	for sub := range r.members {
		select {
		case sub.ch <- msg:
		default:
			// A subscriber that cannot keep up loses this message rather
			// than stalling the room; it reconverges from persisted state.
			logging.ForProject(projectID).LogWarnf("publish", "dropping message seq=%d for slow subscriber %s", msg.Seq, sub.ID)
		}
	}
	r.mu.Unlock()

	if h.mirror != nil {
		h.mirror.Published(projectID, msg)
	}

	return msg
}

// MemberCount reports the number of currently joined subscribers.
func (h *Hub) MemberCount(projectID string) int {
	h.mu.RLock()
	r, ok := h.rooms[projectID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (h *Hub) room(projectID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[projectID]
	if !ok {
		r = &room{projectID: projectID, members: make(map[*Subscriber]struct{})}
		h.rooms[projectID] = r
	}
	return r
}
