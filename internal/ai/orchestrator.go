package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/devroom-labs/devroom-backend/config"
	"google.golang.org/genai"
)

// personaMetaPrompt derives the system instruction for the collaborator
// persona. It is sent once per process; the result is cached in the
// orchestrator.
const personaMetaPrompt = `Create a system instruction for a generative AI model.
The instruction should describe the model as an expert full-stack developer with 10 years of experience.
Include examples for creating an Express application, handling REST APIs, and responding to user queries.
Ensure the examples are modular, scalable, and follow best practices.
The model must always answer with a single JSON object containing a "text" field and, when it creates or modifies code, a "fileTree" field mapping file paths to file contents.`

// Generator is what the collaboration room depends on. Implemented by
// Orchestrator; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Payload, error)
}

// generateFunc performs one raw model call: system instruction + prompt in,
// text out. Split out so tests can run without a network.
type generateFunc func(ctx context.Context, instruction, prompt string) (string, error)

// Orchestrator turns a conversational prompt into a structured Payload.
// The persona instruction is process-wide memoized state with an explicit
// refresh hook, not a hidden module-level variable.
type Orchestrator struct {
	generate generateFunc

	mu      sync.Mutex
	persona string
}

// New creates an orchestrator backed by the Gemini API.
func New(ctx context.Context, cfg config.AIConfig) (*Orchestrator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_AI_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	temperature := float32(cfg.Temperature)

	gen := func(ctx context.Context, instruction, prompt string) (string, error) {
		genCfg := &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr(temperature),
		}
		if instruction != "" {
			genCfg.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
		}

		result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), genCfg)
		if err != nil {
			return "", err
		}
		return result.Text(), nil
	}

	return newWithGenerate(gen), nil
}

func newWithGenerate(gen generateFunc) *Orchestrator {
	return &Orchestrator{generate: gen}
}

// Generate issues the persona call (once, cached) followed by the content
// call, and validates the response into a Payload.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (*Payload, error) {
	instruction, err := o.personaInstruction(ctx)
	if err != nil {
		// No fallback to a default persona: failing loudly here is
		// preferred over answering in an unspecified voice.
		return nil, &GenerationError{Op: "derive persona", Err: err}
	}

	raw, err := o.generate(ctx, instruction, prompt)
	if err != nil {
		return nil, &GenerationError{Op: "generate content", Err: err}
	}

	return ParsePayload(raw)
}

// RefreshPersona recomputes the cached persona instruction. Wired to the
// maintenance scheduler; safe to call concurrently with Generate.
func (o *Orchestrator) RefreshPersona(ctx context.Context) error {
	instruction, err := o.generate(ctx, "", personaMetaPrompt)
	if err != nil {
		return &GenerationError{Op: "refresh persona", Err: err}
	}

	o.mu.Lock()
	o.persona = instruction
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) personaInstruction(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.persona != "" {
		return o.persona, nil
	}

	instruction, err := o.generate(ctx, "", personaMetaPrompt)
	if err != nil {
		return "", err
	}
	if instruction == "" {
		return "", fmt.Errorf("empty persona instruction")
	}

	o.persona = instruction
	return o.persona, nil
}
