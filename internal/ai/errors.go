package ai

import "fmt"

// GenerationError means the backend call itself failed (network, rate limit,
// timeout). The caller decides on retry policy; the orchestrator never
// retries silently.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("ai generation failed (%s): %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// MalformedResponseError means the backend answered, but the body is not a
// conforming payload. The raw text is kept for logging; it must never be
// surfaced to chat as if it were valid content.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("ai response is not a valid payload: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
