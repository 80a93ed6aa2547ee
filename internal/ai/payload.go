package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devroom-labs/devroom-backend/internal/filetree"
)

// Payload is the structured form of the AI participant's output: a
// chat-displayable explanation plus an optional whole-snapshot file tree.
type Payload struct {
	Text     string        `json:"text"`
	FileTree filetree.Tree `json:"fileTree,omitempty"`
}

// ParsePayload decodes raw model output into a Payload. Generated text
// crosses a trust boundary here: anything that does not strictly decode is a
// MalformedResponseError, never a partially-usable value.
func ParsePayload(raw string) (*Payload, error) {
	trimmed := strings.TrimSpace(raw)

	// Models fenced with a JSON MIME type still occasionally wrap output in
	// a markdown code fence.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var p Payload
	if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}

	if strings.TrimSpace(p.Text) == "" {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("missing text field")}
	}

	if p.FileTree != nil {
		if err := p.FileTree.Validate(); err != nil {
			return nil, &MalformedResponseError{Raw: raw, Err: err}
		}
	}

	return &p, nil
}

// Encode renders the payload back to the wire form carried inside a chat
// message.
func (p *Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
