package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/logging"
	"github.com/devroom-labs/devroom-backend/internal/realtime"
	"golang.org/x/time/rate"
)

const persistTimeout = 15 * time.Second

// Room is one project's collaboration state machine. All AI-directed traffic
// for the project funnels through a single worker goroutine, so generation
// requests are strictly sequential per project while projects stay fully
// independent of each other.
type Room struct {
	projectID string
	deps      Deps
	limiter   *rate.Limiter
	log       *logging.Logger

	queue chan realtime.Message
	done  chan struct{}

	mu         sync.Mutex
	closed     bool
	lastActive time.Time
}

func newRoom(projectID string, deps Deps) *Room {
	r := &Room{
		projectID:  projectID,
		deps:       deps,
		limiter:    rate.NewLimiter(deps.AIRate, deps.AIBurst),
		log:        logging.ForProject(projectID),
		queue:      make(chan realtime.Message, deps.QueueSize),
		done:       make(chan struct{}),
		lastActive: time.Now(),
	}
	go r.aiWorker()
	return r
}

// HandleMessage rebroadcasts the message to the room and, when it is
// addressed to the AI participant, enqueues it for the generation worker.
func (r *Room) HandleMessage(_ context.Context, msg realtime.Message) {
	r.touch()

	if msg.Type == "" {
		msg.Type = realtime.TypeProjectMessage
	}
	msg.ProjectID = r.projectID

	// Human messages are visible immediately, AI-directed or not.
	r.deps.Broadcast.Publish(r.projectID, msg)

	if msg.Target != realtime.TargetAI {
		return
	}

	if !r.limiter.Allow() {
		r.systemNotice(KindRateLimited, "the AI participant is receiving too many requests, try again shortly")
		return
	}

	select {
	case r.queue <- msg:
	case <-r.done:
	default:
		r.systemNotice(KindGenerationError, "the AI request queue for this project is full")
	}
}

func (r *Room) aiWorker() {
	for {
		select {
		case <-r.done:
			return
		case msg := <-r.queue:
			r.processAIRequest(msg)
		}
	}
}

// processAIRequest runs one full generation turn: generate, merge the file
// tree, mount, broadcast. Every failure is translated into a system notice;
// nothing here may kill the worker.
func (r *Room) processAIRequest(msg realtime.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.LogErrorf("ai_request", "recovered from panic: %v", rec)
			r.systemNotice(KindGenerationError, "the AI request failed unexpectedly")
		}
	}()

	// Detached from the requester's connection: a disconnect mid-flight
	// must not cancel the call, only the timeout bounds it.
	ctx, cancel := context.WithTimeout(context.Background(), r.deps.GenTimeout)
	defer cancel()

	payload, err := r.deps.Generator.Generate(ctx, msg.Message)
	if err != nil {
		r.log.LogError("ai_generate", err)
		r.systemNotice(noticeKind(err), "the AI participant could not answer this request")
		return
	}

	if len(payload.FileTree) > 0 {
		pctx, pcancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := r.deps.Trees.Replace(pctx, r.projectID, payload.FileTree); err != nil {
			pcancel()
			r.log.LogError("replace_file_tree", err)
			// Mount is skipped: there is no authoritative snapshot to mount.
			r.systemNotice(noticeKind(err), "the generated file tree could not be saved")
		} else {
			pcancel()
			if r.deps.Sandboxes != nil {
				mctx, mcancel := context.WithTimeout(context.Background(), persistTimeout)
				if err := r.deps.Sandboxes.Mount(mctx, r.projectID, payload.FileTree); err != nil {
					r.log.LogError("mount_sandbox", err)
					r.systemNotice(noticeKind(err), "the file tree was saved but could not be mounted")
				}
				mcancel()
			}
		}
	}

	encoded, err := payload.Encode()
	if err != nil {
		r.log.LogError("encode_payload", err)
		r.systemNotice(KindMalformedResponse, "the AI response could not be encoded")
		return
	}

	r.deps.Broadcast.Publish(r.projectID, realtime.Message{
		Type:    realtime.TypeProjectMessage,
		Sender:  realtime.AISender,
		Message: encoded,
	})
}

func (r *Room) systemNotice(kind, text string) {
	r.deps.Broadcast.Publish(r.projectID, realtime.Message{
		Type:    realtime.TypeSystemNotice,
		Sender:  realtime.AISender,
		Kind:    kind,
		Message: fmt.Sprintf("[%s] %s", kind, text),
	})
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()
}

func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

// Close stops the AI worker. Queued requests are dropped; in-flight ones
// finish their current turn.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.done)
}
