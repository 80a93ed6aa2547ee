package ai

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	t.Run("parses text-only response", func(t *testing.T) {
		p, err := ParsePayload(`{"text":"Hello, how can I help?"}`)
		require.NoError(t, err)
		assert.Equal(t, "Hello, how can I help?", p.Text)
		assert.Empty(t, p.FileTree)
	})

	t.Run("parses response with file tree", func(t *testing.T) {
		raw := `{
			"text": "Here is an Express server.",
			"fileTree": {
				"app.js": "const express = require('express')",
				"package.json": "{\"name\":\"app\"}"
			}
		}`
		p, err := ParsePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, "Here is an Express server.", p.Text)
		require.Len(t, p.FileTree, 2)
		assert.Equal(t, "const express = require('express')", p.FileTree["app.js"])
	})

	t.Run("strips markdown code fences", func(t *testing.T) {
		raw := "```json\n{\"text\":\"fenced\"}\n```"
		p, err := ParsePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, "fenced", p.Text)
	})

	t.Run("rejects non-JSON output", func(t *testing.T) {
		_, err := ParsePayload("Sure! Here is the code you asked for.")
		require.Error(t, err)

		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
		assert.Contains(t, merr.Raw, "Sure!")
	})

	t.Run("rejects missing text field", func(t *testing.T) {
		_, err := ParsePayload(`{"fileTree":{"a.js":"x"}}`)
		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
	})

	t.Run("rejects blank text field", func(t *testing.T) {
		_, err := ParsePayload(`{"text":"   "}`)
		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
	})

	t.Run("rejects file tree with escaping path", func(t *testing.T) {
		_, err := ParsePayload(`{"text":"x","fileTree":{"../../etc/passwd":"pwned"}}`)
		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
	})

	t.Run("rejects file tree with absolute path", func(t *testing.T) {
		_, err := ParsePayload(`{"text":"x","fileTree":{"/etc/passwd":"pwned"}}`)
		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
	})

	t.Run("rejects wrong fileTree shape", func(t *testing.T) {
		_, err := ParsePayload(`{"text":"x","fileTree":["a.js"]}`)
		var merr *MalformedResponseError
		require.True(t, errors.As(err, &merr))
	})
}

func TestPayload_Encode(t *testing.T) {
	p := &Payload{
		Text:     "done",
		FileTree: map[string]string{"a.js": "1"},
	}

	encoded, err := p.Encode()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	assert.Equal(t, "done", decoded["text"])
	assert.NotNil(t, decoded["fileTree"])
}
