// Package websocket fans the current session list out to connected dashboard
// clients. A single actor goroutine owns the client set; per-connection
// writers isolate slow consumers.
package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/VIPHakim/netboost/internal/domain"
	"github.com/VIPHakim/netboost/internal/metrics"
)

const maxClients = 50

var (
	// ErrTooManyClients is returned by Register once the feed is at capacity.
	ErrTooManyClients = errors.New("session feed client limit reached")
	// ErrHubStopped is returned by Register after shutdown.
	ErrHubStopped = errors.New("session feed hub stopped")
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	initial      []byte
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	data []byte
}

type viewerCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// sessionsMessage is the wire envelope every feed client receives.
type sessionsMessage struct {
	Type     string                 `json:"type"`
	Sessions []domain.SessionRecord `json:"sessions"`
}

// Hub maintains the set of session-feed clients and pushes the full session
// list to every client on each store change.
type Hub struct {
	cmdCh   chan hubCmd
	clock   clockwork.Clock
	clients map[*websocket.Conn]*clientWriter
	done    chan struct{}
}

func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clock:   clock,
		clients: make(map[*websocket.Conn]*clientWriter),
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a feed client. The current session list is queued as the
// client's first message so it never starts from a blank view.
func (h *Hub) Register(conn *websocket.Conn, current []domain.SessionRecord) error {
	data, err := encodeSessions(current)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	select {
	case h.cmdCh <- registerCmd{connection: conn, initial: data, errorChannel: errCh}:
		return <-errCh
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes a feed client and stops its writer.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.cmdCh <- unregisterCmd{connection: conn}:
	case <-h.done:
	}
}

// Broadcast pushes the session list to every connected client.
func (h *Hub) Broadcast(sessions []domain.SessionRecord) {
	data, err := encodeSessions(sessions)
	if err != nil {
		slog.Error("Failed to marshal session feed message", "error", err)
		return
	}
	select {
	case h.cmdCh <- broadcastCmd{data: data}:
	case <-h.done:
	}
}

// ViewerCount reports how many feed clients are connected. The reconciler
// uses it to pick its polling interval.
func (h *Hub) ViewerCount() int {
	replyCh := make(chan int, 1)
	select {
	case h.cmdCh <- viewerCountCmd{replyChannel: replyCh}:
		return <-replyCh
	case <-h.done:
		return 0
	}
}

// Consume pipes a store change feed into Broadcast until the feed closes.
func (h *Hub) Consume(feed <-chan []domain.SessionRecord) {
	for sessions := range feed {
		h.Broadcast(sessions)
	}
}

// Stop closes every client connection and terminates the actor.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- stopCmd{}:
		<-h.done
	case <-h.done:
	}
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c.connection)
		case broadcastCmd:
			h.handleBroadcast(c.data)
		case viewerCountCmd:
			c.replyChannel <- len(h.clients)
		case stopCmd:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= maxClients {
		slog.Warn("Rejecting session feed client, limit reached", "max_clients", maxClients)
		c.connection.Close()
		c.errorChannel <- ErrTooManyClients
		return
	}

	cw := newClientWriter(c.connection, h.clock)
	h.clients[c.connection] = cw
	cw.sendChannel <- c.initial
	metrics.SessionFeedClients.Set(float64(len(h.clients)))
	slog.Info("Session feed client connected", "total_clients", len(h.clients))
	c.errorChannel <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, ok := h.clients[conn]
	if !ok {
		return
	}
	cw.stop()
	delete(h.clients, conn)
	metrics.SessionFeedClients.Set(float64(len(h.clients)))
	slog.Info("Session feed client disconnected", "remaining_clients", len(h.clients))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []*websocket.Conn
	for conn, cw := range h.clients {
		select {
		case cw.sendChannel <- data:
		default:
			slow = append(slow, conn)
		}
	}
	for _, conn := range slow {
		slog.Warn("Disconnecting slow session feed client")
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
	metrics.SessionFeedClients.Set(0)
	close(h.done)
}

func encodeSessions(sessions []domain.SessionRecord) ([]byte, error) {
	if sessions == nil {
		sessions = []domain.SessionRecord{}
	}
	return json.Marshal(sessionsMessage{Type: "sessions", Sessions: sessions})
}
