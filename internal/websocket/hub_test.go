package websocket

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(id string) *Client {
	return &Client{
		send:        make(chan []byte, 8),
		id:          id,
		remoteAddr:  "test",
		connectedAt: time.Now(),
		logger:      testLogger(),
	}
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-c.send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_RegisterSendsConnectionMessage(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	defer hub.Stop()

	client := testClient("c1")
	client.hub = hub
	hub.register <- client

	msg := receive(t, client)
	assert.Equal(t, TypeConnection, msg["type"])

	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "c1", data["client_id"])
}

func TestHub_BroadcastDatasetReloaded(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	defer hub.Stop()

	a := testClient("a")
	a.hub = hub
	b := testClient("b")
	b.hub = hub
	hub.register <- a
	hub.register <- b

	// Drain the connection greetings.
	receive(t, a)
	receive(t, b)

	hub.BroadcastDatasetReloaded(120, 4)

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, TypeDatasetReloaded, msg["type"])
		data := msg["data"].(map[string]interface{})
		assert.Equal(t, float64(120), data["rows"])
		assert.Equal(t, float64(4), data["tags"])
	}
}

func TestHub_BroadcastError(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	defer hub.Stop()

	c := testClient("c")
	c.hub = hub
	hub.register <- c
	receive(t, c)

	hub.BroadcastError("dataset reload failed")

	msg := receive(t, c)
	assert.Equal(t, TypeError, msg["type"])
	data := msg["data"].(map[string]interface{})
	assert.Contains(t, data["message"], "reload failed")
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	defer hub.Stop()

	c := testClient("c")
	c.hub = hub
	hub.register <- c
	receive(t, c)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.unregister <- c

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	// The send channel is closed on unregister.
	_, open := <-c.send
	assert.False(t, open)
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	defer hub.Stop()

	slow := &Client{
		send:        make(chan []byte), // unbuffered and never read
		id:          "slow",
		remoteAddr:  "test",
		connectedAt: time.Now(),
		logger:      testLogger(),
	}
	slow.hub = hub
	hub.register <- slow

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastError("filler")

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_DisconnectAfterStop(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()

	c := testClient("c")
	c.hub = hub
	hub.register <- c
	receive(t, c)

	hub.Stop()

	// With the hub stopped nobody drains unregister; disconnect must still
	// return instead of leaking the read pump goroutine.
	done := make(chan struct{})
	go func() {
		c.disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect blocked after hub stop")
	}
}

func TestHub_StartIsIdempotent(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()
	hub.Start()
	hub.Stop()
}
