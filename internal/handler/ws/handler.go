package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/spindleworks/assistant/backend/internal/model/chat"
	"github.com/spindleworks/assistant/backend/internal/service/transcript"
)

// writeWait bounds how long a snapshot push may block on a stalled client;
// pushes run under the controller lock, so an unbounded write would stall
// every surface. Variable so tests can tighten it.
var writeWait = 10 * time.Second

// Handler provides the duplex chat surface: submit frames in, transcript
// snapshot frames out.
type Handler struct {
	controller *transcript.Controller
	upgrader   websocket.Upgrader
}

// New creates the websocket handler.
func New(controller *transcript.Controller) *Handler {
	return &Handler{
		controller: controller,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outboundFrame struct {
	Type     string         `json:"type"`
	Snapshot *chat.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Snapshot pushes arrive from the turn goroutine while the read loop
	// answers submissions; gorilla allows a single concurrent writer.
	var wmu sync.Mutex
	write := func(frame outboundFrame) error {
		wmu.Lock()
		defer wmu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(frame)
	}

	snapshot := h.controller.Snapshot()
	if err := write(outboundFrame{Type: "snapshot", Snapshot: &snapshot}); err != nil {
		log.Printf("[ws] initial snapshot write failed: %v", err)
		return
	}

	unsubscribe := h.controller.Subscribe(func(s chat.Snapshot) {
		if err := write(outboundFrame{Type: "snapshot", Snapshot: &s}); err != nil {
			log.Printf("[ws] snapshot push failed: %v", err)
		}
	})
	defer unsubscribe()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		switch frame.Type {
		case "submit":
			// Turns run to completion regardless of this connection.
			if err := h.controller.Submit(context.Background(), frame.Text); err != nil {
				if writeErr := write(outboundFrame{Type: "rejected", Error: err.Error()}); writeErr != nil {
					return
				}
			}
		default:
			if err := write(outboundFrame{Type: "error", Error: "unknown frame type"}); err != nil {
				return
			}
		}
	}
}
