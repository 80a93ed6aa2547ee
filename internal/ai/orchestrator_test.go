package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerate counts raw model calls and returns canned output. The
// first call with an empty instruction is the persona derivation.
type scriptedGenerate struct {
	personaCalls int
	contentCalls int

	personaErr error
	contentErr error
	content    string
}

func (s *scriptedGenerate) fn(_ context.Context, instruction, prompt string) (string, error) {
	if instruction == "" {
		s.personaCalls++
		if s.personaErr != nil {
			return "", s.personaErr
		}
		return "You are an expert full-stack developer.", nil
	}

	s.contentCalls++
	if s.contentErr != nil {
		return "", s.contentErr
	}
	return s.content, nil
}

func TestOrchestrator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns parsed payload", func(t *testing.T) {
		gen := &scriptedGenerate{content: `{"text":"hi","fileTree":{"a.js":"1"}}`}
		o := newWithGenerate(gen.fn)

		p, err := o.Generate(ctx, "build me a server")
		require.NoError(t, err)
		assert.Equal(t, "hi", p.Text)
		assert.Len(t, p.FileTree, 1)
	})

	t.Run("persona is derived once and reused", func(t *testing.T) {
		gen := &scriptedGenerate{content: `{"text":"hi"}`}
		o := newWithGenerate(gen.fn)

		for i := 0; i < 3; i++ {
			_, err := o.Generate(ctx, "prompt")
			require.NoError(t, err)
		}

		assert.Equal(t, 1, gen.personaCalls)
		assert.Equal(t, 3, gen.contentCalls)
	})

	t.Run("persona failure surfaces as generation error, no content call", func(t *testing.T) {
		gen := &scriptedGenerate{personaErr: fmt.Errorf("quota exceeded")}
		o := newWithGenerate(gen.fn)

		_, err := o.Generate(ctx, "prompt")
		require.Error(t, err)

		var gerr *GenerationError
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, 0, gen.contentCalls)
	})

	t.Run("persona failure does not poison later attempts", func(t *testing.T) {
		gen := &scriptedGenerate{personaErr: fmt.Errorf("quota exceeded"), content: `{"text":"hi"}`}
		o := newWithGenerate(gen.fn)

		_, err := o.Generate(ctx, "prompt")
		require.Error(t, err)

		gen.personaErr = nil
		p, err := o.Generate(ctx, "prompt")
		require.NoError(t, err)
		assert.Equal(t, "hi", p.Text)
		assert.Equal(t, 2, gen.personaCalls)
	})

	t.Run("content failure surfaces as generation error", func(t *testing.T) {
		gen := &scriptedGenerate{contentErr: fmt.Errorf("model overloaded")}
		o := newWithGenerate(gen.fn)

		_, err := o.Generate(ctx, "prompt")
		var gerr *GenerationError
		require.True(t, errors.As(err, &gerr))
	})

	t.Run("malformed output surfaces as malformed response error", func(t *testing.T) {
		gen := &scriptedGenerate{content: "not json at all"}
		o := newWithGenerate(gen.fn)

		_, err := o.Generate(ctx, "prompt")
		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
	})
}

func TestOrchestrator_RefreshPersona(t *testing.T) {
	ctx := context.Background()

	gen := &scriptedGenerate{content: `{"text":"hi"}`}
	o := newWithGenerate(gen.fn)

	_, err := o.Generate(ctx, "prompt")
	require.NoError(t, err)
	require.Equal(t, 1, gen.personaCalls)

	require.NoError(t, o.RefreshPersona(ctx))
	assert.Equal(t, 2, gen.personaCalls)

	// Refresh replaces the cache; Generate must not re-derive.
	_, err = o.Generate(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, gen.personaCalls)
}
