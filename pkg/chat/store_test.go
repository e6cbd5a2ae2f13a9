package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

func setupStore(t *testing.T) *TranscriptStore {
	store, err := NewTranscriptStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func textTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []tools.Part{{Type: tools.PartText, Text: text}}}
}

func TestTranscriptStore(t *testing.T) {
	t.Run("should round-trip appended turns", func(t *testing.T) {
		store := setupStore(t)

		require.NoError(t, store.Append("demo", textTurn(RoleUser, "add 2 and 3")))
		require.NoError(t, store.Append("demo", textTurn(RoleModel, "2 + 3 = 5")))

		turns, err := store.Load("demo")
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, RoleUser, turns[0].Role)
		assert.Equal(t, "add 2 and 3", turns[0].Text())
		assert.Equal(t, RoleModel, turns[1].Role)
	})

	t.Run("should return empty for an unknown key", func(t *testing.T) {
		store := setupStore(t)

		turns, err := store.Load("missing")
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("should skip corrupt lines on load", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewTranscriptStore(dir)
		require.NoError(t, err)

		require.NoError(t, store.Append("demo", textTurn(RoleUser, "first")))

		f, err := os.OpenFile(filepath.Join(dir, "demo.jsonl"), os.O_APPEND|os.O_WRONLY, 0600)
		require.NoError(t, err)
		_, err = f.WriteString("{broken json\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		require.NoError(t, store.Append("demo", textTurn(RoleModel, "second")))

		turns, err := store.Load("demo")
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "first", turns[0].Text())
		assert.Equal(t, "second", turns[1].Text())
	})

	t.Run("should reject keys with path separators", func(t *testing.T) {
		store := setupStore(t)

		assert.Error(t, store.Append("../escape", textTurn(RoleUser, "x")))
		assert.Error(t, store.Append("a/b", textTurn(RoleUser, "x")))
		_, err := store.Load("..")
		assert.Error(t, err)
	})

	t.Run("should list and delete transcripts", func(t *testing.T) {
		store := setupStore(t)

		require.NoError(t, store.Append("one", textTurn(RoleUser, "x")))
		require.NoError(t, store.Append("two", textTurn(RoleUser, "y")))

		keys, err := store.List()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"one", "two"}, keys)

		require.NoError(t, store.Delete("one"))
		keys, err = store.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"two"}, keys)

		// Deleting an absent transcript is a no-op
		require.NoError(t, store.Delete("one"))
	})
}
