package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

func newTestTransport(t *testing.T) *Transport {
	transport, err := NewTransport(TransportConfig{
		Registry: tools.NewRegistry(),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return transport
}

func TestTable(t *testing.T) {
	t.Run("should bind the generated id to the transport", func(t *testing.T) {
		table := NewTable()
		transport := newTestTransport(t)

		session := table.Create(transport)
		assert.NotEmpty(t, session.ID)
		assert.Equal(t, session.ID, transport.ID())

		found, ok := table.Lookup(session.ID)
		require.True(t, ok)
		assert.Same(t, transport, found.Transport)
	})

	t.Run("should generate distinct ids under concurrency", func(t *testing.T) {
		table := NewTable()

		const n = 32
		ids := make([]string, n)
		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i] = table.Create(newTestTransport(t)).ID
			}(i)
		}
		wg.Wait()

		seen := map[string]bool{}
		for _, id := range ids {
			assert.False(t, seen[id])
			seen[id] = true
		}
		assert.Equal(t, n, table.Len())
	})

	t.Run("should treat removing an absent id as a no-op", func(t *testing.T) {
		table := NewTable()
		table.Remove("missing")
		assert.Equal(t, 0, table.Len())
	})
}

func TestTransportLifecycle(t *testing.T) {
	t.Run("should drop queued messages on close", func(t *testing.T) {
		transport := newTestTransport(t)
		transport.Enqueue(newEvent("tool.start", "s", nil))

		transport.Close()
		assert.True(t, transport.Closed())
		assert.Empty(t, transport.Drain())

		// Close is idempotent and messages stay rejected
		transport.Close()
		transport.Enqueue(newEvent("tool.finish", "s", nil))
		assert.Empty(t, transport.Drain())
	})
}

func TestSweeper(t *testing.T) {
	t.Run("should evict only sessions past the idle timeout", func(t *testing.T) {
		table := NewTable()

		stale := table.Create(newTestTransport(t))
		stale.Transport.stateMu.Lock()
		stale.Transport.lastActive = time.Now().Add(-time.Hour)
		stale.Transport.stateMu.Unlock()

		fresh := table.Create(newTestTransport(t))

		var evicted []*Session
		sweeper, err := NewSweeper(table, 30*time.Minute, "", func(s *Session) {
			evicted = append(evicted, s)
		}, zerolog.Nop())
		require.NoError(t, err)

		count := sweeper.SweepNow()
		assert.Equal(t, 1, count)
		require.Len(t, evicted, 1)
		assert.Equal(t, stale.ID, evicted[0].ID)
		assert.True(t, evicted[0].Transport.Closed())

		_, ok := table.Lookup(stale.ID)
		assert.False(t, ok)
		_, ok = table.Lookup(fresh.ID)
		assert.True(t, ok)
	})

	t.Run("should reject an invalid schedule", func(t *testing.T) {
		_, err := NewSweeper(NewTable(), time.Minute, "not a cron expr", nil, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestParseRequest(t *testing.T) {
	t.Run("should default the jsonrpc version", func(t *testing.T) {
		req, err := ParseRequest([]byte(`{"id":"1","method":"ping"}`))
		require.NoError(t, err)
		assert.Equal(t, "2.0", req.JSONRPC)
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		_, err := ParseRequest([]byte(`{`))
		require.Error(t, err)
		rpcErr, ok := err.(*RPCError)
		require.True(t, ok)
		assert.Equal(t, ParseError, rpcErr.Code)
	})

	t.Run("should reject missing method", func(t *testing.T) {
		_, err := ParseRequest([]byte(`{"id":"1"}`))
		require.Error(t, err)
		rpcErr, ok := err.(*RPCError)
		require.True(t, ok)
		assert.Equal(t, InvalidRequest, rpcErr.Code)
	})
}
