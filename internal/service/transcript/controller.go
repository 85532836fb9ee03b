package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/spindleworks/assistant/backend/internal/model/chat"
	"github.com/spindleworks/assistant/backend/internal/service/session"
)

var (
	// ErrEmptyMessage rejects submissions that are empty after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrTurnInFlight rejects submissions while a prior turn is still streaming.
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// TurnStreamer is the slice of the session manager the controller drives.
type TurnStreamer interface {
	SendTurn(ctx context.Context, userText string) (*schema.StreamReader[*schema.Message], error)
}

// Listener receives transcript snapshots. Listeners run synchronously under
// the controller lock, so every listener sees every publication in order;
// they must not call back into the controller.
type Listener func(chat.Snapshot)

// Controller owns the ordered transcript and its update protocol. Each user
// submission appends a user entry plus a pending bot entry, then folds the
// streamed reply fragments into the bot entry by id, republishing the full
// transcript after every fragment. At most one turn is in flight at a time.
type Controller struct {
	mu        sync.Mutex
	messages  []chat.Message
	busy      bool
	streamer  TurnStreamer
	listeners map[int]Listener
	nextSub   int
}

// New seeds the transcript with the assistant greeting. A nil streamer is
// tolerated: every turn then fails inline with the initialization error.
func New(streamer TurnStreamer, greeting string) *Controller {
	c := &Controller{
		streamer:  streamer,
		listeners: make(map[int]Listener),
	}
	c.messages = append(c.messages, chat.Message{
		ID:        uuid.NewString(),
		Sender:    chat.SenderBot,
		Text:      greeting,
		Status:    chat.StatusComplete,
		CreatedAt: time.Now().UTC(),
	})
	return c
}

// Subscribe registers a snapshot listener and returns its remove func.
func (c *Controller) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Snapshot returns a copy of the current transcript and the busy flag.
func (c *Controller) Snapshot() chat.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Busy reports whether a turn is currently in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Submit validates userText, appends the user/bot entry pair and starts
// driving the reply stream on a turn goroutine. Rejections (empty text, turn
// in flight) leave the transcript untouched.
func (c *Controller) Submit(ctx context.Context, userText string) error {
	text := strings.TrimSpace(userText)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	c.busy = true

	now := time.Now().UTC()
	botID := uuid.NewString()
	c.messages = append(c.messages,
		chat.Message{
			ID:        uuid.NewString(),
			Sender:    chat.SenderUser,
			Text:      text,
			Status:    chat.StatusComplete,
			CreatedAt: now,
		},
		chat.Message{
			ID:        botID,
			Sender:    chat.SenderBot,
			Text:      "",
			Status:    chat.StatusPending,
			CreatedAt: now,
		},
	)
	c.publishLocked()
	c.mu.Unlock()

	go c.runTurn(ctx, botID, text)
	return nil
}

// runTurn drains one reply stream into the bot entry identified by botID.
// Fragments are applied and republished strictly in arrival order.
func (c *Controller) runTurn(ctx context.Context, botID, userText string) {
	stream, err := c.openStream(ctx, userText)
	if err != nil {
		c.failTurn(botID, err)
		return
	}
	defer stream.Close()

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			c.failTurn(botID, recvErr)
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		c.applyFragment(botID, chunk.Content)
	}

	c.finishTurn(botID)
}

func (c *Controller) openStream(ctx context.Context, userText string) (*schema.StreamReader[*schema.Message], error) {
	if c.streamer == nil {
		return nil, session.ErrNotInitialized
	}
	return c.streamer.SendTurn(ctx, userText)
}

// applyFragment concatenates one fragment onto the bot entry's text and
// republishes the transcript. Identity and position never change.
func (c *Controller) applyFragment(botID, fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := c.findLocked(botID)
	if msg == nil || msg.Terminal() {
		return
	}
	msg.Text += fragment
	msg.Status = chat.StatusStreaming
	c.publishLocked()
}

func (c *Controller) finishTurn(botID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg := c.findLocked(botID); msg != nil && !msg.Terminal() {
		msg.Status = chat.StatusComplete
	}
	c.busy = false
	c.publishLocked()
}

// failTurn converts any turn failure into a terminal errored bot entry; the
// failure never escapes the turn boundary or touches other entries.
func (c *Controller) failTurn(botID string, cause error) {
	log.Printf("[transcript] turn failed: %v", cause)

	c.mu.Lock()
	defer c.mu.Unlock()

	if msg := c.findLocked(botID); msg != nil && !msg.Terminal() {
		msg.Text = fmt.Sprintf("Sorry, I ran into a problem answering that (%v). Please try again.", cause)
		msg.Status = chat.StatusErrored
	}
	c.busy = false
	c.publishLocked()
}

func (c *Controller) findLocked(id string) *chat.Message {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return &c.messages[i]
		}
	}
	return nil
}

func (c *Controller) snapshotLocked() chat.Snapshot {
	messages := make([]chat.Message, len(c.messages))
	copy(messages, c.messages)
	return chat.Snapshot{Messages: messages, Busy: c.busy}
}

func (c *Controller) publishLocked() {
	if len(c.listeners) == 0 {
		return
	}
	snapshot := c.snapshotLocked()
	for _, fn := range c.listeners {
		fn(snapshot)
	}
}
