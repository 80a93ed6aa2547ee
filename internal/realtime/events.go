package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devroom-labs/devroom-backend/internal/logging"
	"github.com/redis/go-redis/v9"
)

const (
	roomEventChannelPrefix = "room:events:"  // Pub/Sub channel per project: room:events:{project_id}
	roomMemberSetPrefix    = "room:members:" // Set of connected subscriber IDs: room:members:{project_id}
	presenceTTL            = 24 * time.Hour
)

// EventMirror publishes room activity to redis so external consumers
// (history persistence, catch-up feeds) can subscribe without touching the
// in-process hub. Everything here is best-effort: mirror failures are logged
// and never surface to chat flow.
type EventMirror struct {
	client *redis.Client
	ctx    context.Context
}

func NewEventMirror(client *redis.Client) *EventMirror {
	return &EventMirror{client: client, ctx: context.Background()}
}

// Published mirrors a broadcast message onto the project's event channel.
func (m *EventMirror) Published(projectID string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logging.ForProject(projectID).LogError("mirror_publish", err)
		return
	}

	if err := m.client.Publish(m.ctx, m.eventChannel(projectID), payload).Err(); err != nil {
		logging.ForProject(projectID).LogError("mirror_publish", err)
	}
}

// MemberJoined records presence for the project room.
func (m *EventMirror) MemberJoined(projectID, subscriberID string) {
	key := m.memberSetKey(projectID)

	pipe := m.client.Pipeline()
	pipe.SAdd(m.ctx, key, subscriberID)
	pipe.Expire(m.ctx, key, presenceTTL)
	if _, err := pipe.Exec(m.ctx); err != nil {
		logging.ForProject(projectID).LogError("mirror_join", err)
	}
}

// MemberLeft removes presence for the project room.
func (m *EventMirror) MemberLeft(projectID, subscriberID string) {
	if err := m.client.SRem(m.ctx, m.memberSetKey(projectID), subscriberID).Err(); err != nil {
		logging.ForProject(projectID).LogError("mirror_leave", err)
	}
}

// Members lists subscriber IDs currently recorded for the project room.
func (m *EventMirror) Members(ctx context.Context, projectID string) ([]string, error) {
	members, err := m.client.SMembers(ctx, m.memberSetKey(projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	return members, nil
}

func (m *EventMirror) eventChannel(projectID string) string {
	return fmt.Sprintf("%s%s", roomEventChannelPrefix, projectID)
}

func (m *EventMirror) memberSetKey(projectID string) string {
	return fmt.Sprintf("%s%s", roomMemberSetPrefix, projectID)
}
