package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const writeTimeout = time.Second * 5

// Message is sent to every connected page when the current report changes.
type Message struct {
	// Type is "tree" when a report was loaded and "cleared" when the previous
	// one was dropped.
	Type string      `json:"type"`
	Name string      `json:"name,omitempty"`
	Tree *gprof.Node `json:"tree,omitempty"`
}

// Hub keeps the open websocket sessions of viewer pages.
type Hub struct {
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*websocket.Conn

	// sendMu orders broadcasts against the snapshot a new session gets.
	sendMu sync.Mutex
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*websocket.Conn),
	}
}

// Count is the number of connected pages.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Serve upgrades the request and keeps the session until the page goes away.
// The current tree, if any, is sent right after the session is registered.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, current func() *Loaded) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("accept websocket")
		return
	}

	id := uuid.NewString()[:8]
	logger := h.logger.With().Str("session", id).Logger()

	// Pages only listen, CloseRead handles control frames for us.
	ctx := conn.CloseRead(r.Context())

	h.sendMu.Lock()
	h.mu.Lock()
	h.sessions[id] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()
	logger.Debug().Msg("websocket session started")

	// Read after registering, a later load is then either in the snapshot or
	// broadcast to this session.
	if cur := current(); cur != nil {
		err = write(ctx, conn, Message{Type: "tree", Name: cur.Name, Tree: cur.Tree})
	}
	h.sendMu.Unlock()
	if err != nil {
		logger.Error().Err(err).Msg("send current tree")
		return
	}
	<-ctx.Done()
	logger.Debug().Msg("websocket session closed")
}

// Broadcast sends msg to every session. Sessions that fail are closed.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.Lock()
	conns := make(map[string]*websocket.Conn, len(h.sessions))
	for id, conn := range h.sessions {
		conns[id] = conn
	}
	h.mu.Unlock()

	for id, conn := range conns {
		err := write(ctx, conn, msg)
		if err != nil {
			h.logger.Warn().Err(err).Str("session", id).Msg("broadcast failed, closing session")
			_ = conn.Close(websocket.StatusInternalError, "write failed")
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
