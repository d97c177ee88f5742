package system

import (
	"encoding/json"
	"testing"

	"go-pipeline/internal/board"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeMessage(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHubSendsLatestBoardOnRegister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.BoardChanged(board.Board{Version: 3, Loaded: true})

	c := hub.register()
	require.Len(t, c.send, 1)
	msg := decodeMessage(t, <-c.send)
	assert.Equal(t, "board", msg["type"])
	assert.EqualValues(t, 3, msg["board"].(map[string]any)["version"])
}

func TestHubSkipsStaleBoards(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := hub.register()

	hub.BoardChanged(board.Board{Version: 5})
	hub.BoardChanged(board.Board{Version: 4})
	hub.BoardChanged(board.Board{Version: 6})

	require.Len(t, c.send, 2)
	assert.EqualValues(t, 5, decodeMessage(t, <-c.send)["board"].(map[string]any)["version"])
	assert.EqualValues(t, 6, decodeMessage(t, <-c.send)["board"].(map[string]any)["version"])
}

func TestHubBroadcastsNotifications(t *testing.T) {
	hub := NewHub(zap.NewNop())
	a, b := hub.register(), hub.register()

	hub.Notify(board.Notification{Level: board.LevelError, Title: "Error", Message: "Failed to move deal", DealID: "d1"})

	for _, c := range []*client{a, b} {
		msg := decodeMessage(t, <-c.send)
		assert.Equal(t, "notification", msg["type"])
		n := msg["notification"].(map[string]any)
		assert.Equal(t, "Failed to move deal", n["message"])
		assert.Equal(t, "d1", n["deal_id"])
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	slow := hub.register()

	for i := 0; i <= clientBuffer; i++ {
		hub.Notify(board.Notification{Message: "tick"})
	}

	assert.Zero(t, hub.Count())
	n := 0
	for range slow.send {
		n++
	}
	assert.Equal(t, clientBuffer, n)
}

func TestHubUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := hub.register()

	hub.unregister(c)
	hub.unregister(c)
	assert.Zero(t, hub.Count())
}
