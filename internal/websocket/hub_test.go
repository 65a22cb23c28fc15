package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VIPHakim/netboost/internal/domain"
)

// testHub sets up a Hub behind a test HTTP server that upgrades connections.
// Returns the hub and a dial function for connecting feed clients.
func testHub(t *testing.T, initial []domain.SessionRecord) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub(clockwork.NewRealClock())
	t.Cleanup(hub.Stop)

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		if err := hub.Register(conn, initial); err != nil {
			return
		}

		// Read loop to detect disconnects.
		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

func waitForViewerCount(hub *Hub, expected int) bool {
	for range 100 {
		if hub.ViewerCount() == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func readMessage(t *testing.T, conn *ws.Conn) sessionsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg sessionsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_NewClientReceivesSnapshot(t *testing.T) {
	initial := []domain.SessionRecord{{SessionID: "qod-1", DeviceRef: "10.0.0.7", QosStatus: domain.StatusActive, IsActive: true}}
	hub, dial := testHub(t, initial)

	conn := dial()
	require.True(t, waitForViewerCount(hub, 1))

	msg := readMessage(t, conn)
	assert.Equal(t, "sessions", msg.Type)
	require.Len(t, msg.Sessions, 1)
	assert.Equal(t, "qod-1", msg.Sessions[0].SessionID)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, dial := testHub(t, nil)

	first := dial()
	second := dial()
	require.True(t, waitForViewerCount(hub, 2))
	readMessage(t, first)
	readMessage(t, second)

	hub.Broadcast([]domain.SessionRecord{
		{SessionID: "qod-1", QosStatus: domain.StatusActive, IsActive: true},
		{SessionID: "qod-2", QosStatus: domain.StatusExpired},
	})

	for _, conn := range []*ws.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Len(t, msg.Sessions, 2)
	}
}

func TestHub_ViewerCountTracksDisconnects(t *testing.T) {
	hub, dial := testHub(t, nil)

	conn := dial()
	require.True(t, waitForViewerCount(hub, 1))

	conn.Close()
	assert.True(t, waitForViewerCount(hub, 0))
}

func TestHub_BroadcastWithNoClientsIsANoOp(t *testing.T) {
	hub := NewHub(clockwork.NewRealClock())
	t.Cleanup(hub.Stop)

	hub.Broadcast([]domain.SessionRecord{{SessionID: "qod-1"}})
	assert.Equal(t, 0, hub.ViewerCount())
}

func TestHub_ConsumeForwardsStoreFeed(t *testing.T) {
	hub, dial := testHub(t, nil)

	conn := dial()
	require.True(t, waitForViewerCount(hub, 1))
	readMessage(t, conn)

	feed := make(chan []domain.SessionRecord, 1)
	go hub.Consume(feed)
	feed <- []domain.SessionRecord{{SessionID: "qod-9", QosStatus: domain.StatusAvailable, IsActive: true}}
	close(feed)

	msg := readMessage(t, conn)
	require.Len(t, msg.Sessions, 1)
	assert.Equal(t, "qod-9", msg.Sessions[0].SessionID)
}
