package collab

import (
	"errors"

	"github.com/devroom-labs/devroom-backend/internal/ai"
	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/realtime"
	"github.com/devroom-labs/devroom-backend/internal/sandbox"
)

// Notice kinds carried on system-notice broadcasts. Every failure inside a
// room is recovered and translated into one of these; none may take the
// room down.
const (
	KindConnectionError   = "ConnectionError"
	KindGenerationError   = "GenerationError"
	KindMalformedResponse = "MalformedResponseError"
	KindPersistenceError  = "PersistenceError"
	KindMountError        = "MountError"
	KindRateLimited       = "RateLimited"
	KindSandboxReady      = "SandboxReady"
)

// noticeKind classifies an error into its broadcastable kind.
func noticeKind(err error) string {
	var malformed *ai.MalformedResponseError
	if errors.As(err, &malformed) {
		return KindMalformedResponse
	}

	var persistence *filetree.PersistenceError
	if errors.As(err, &persistence) {
		return KindPersistenceError
	}

	var mount *sandbox.MountError
	if errors.As(err, &mount) {
		return KindMountError
	}

	var conn *realtime.ConnectionError
	if errors.As(err, &conn) {
		return KindConnectionError
	}

	return KindGenerationError
}
