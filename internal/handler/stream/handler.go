package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/spindleworks/assistant/backend/internal/model/chat"
	"github.com/spindleworks/assistant/backend/internal/service/transcript"
	"github.com/spindleworks/assistant/backend/pkg/utils"
)

// Handler relays transcript publications over Server-Sent Events while a
// submitted turn streams in.
type Handler struct {
	controller *transcript.Controller
}

// New creates the stream handler.
func New(controller *transcript.Controller) *Handler {
	return &Handler{controller: controller}
}

// StreamEvent is one SSE frame sent to the client.
type StreamEvent struct {
	Event    string         `json:"event"`
	Snapshot *chat.Snapshot `json:"snapshot,omitempty"`
	Finished bool           `json:"finished,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// HandleStreamRequest submits userMessage as the next turn and forwards every
// transcript snapshot to the client until the turn reaches a terminal state.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	// Snapshot listeners fire under the controller lock; the write mutex
	// keeps this handler's own frames from interleaving with them.
	var wmu sync.Mutex
	send := func(event StreamEvent) {
		wmu.Lock()
		defer wmu.Unlock()
		utils.SendSSEEvent(w, flusher, event.Event, event)
	}

	// The turn is over once a busy publication is followed by an idle one;
	// an idle snapshot seen before our submission does not count.
	done := make(chan struct{})
	var once sync.Once
	sawBusy := false
	unsubscribe := h.controller.Subscribe(func(s chat.Snapshot) {
		send(StreamEvent{Event: "snapshot", Snapshot: &s})
		if s.Busy {
			sawBusy = true
			return
		}
		if sawBusy {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	send(StreamEvent{Event: "start"})

	// The turn deliberately does not inherit the request context: once
	// accepted it runs to completion even if this client goes away.
	if err := h.controller.Submit(context.Background(), userMessage); err != nil {
		send(StreamEvent{Event: "error", Error: err.Error()})
		return err
	}

	select {
	case <-done:
		send(StreamEvent{Event: "end", Finished: true})
	case <-ctx.Done():
		// Client disconnected; the turn finishes in the background.
	}

	return nil
}
