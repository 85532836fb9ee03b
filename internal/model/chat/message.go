package chat

import "time"

// Sender values for transcript entries.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Status values tracking a bot entry through its streaming lifecycle.
// Pending and Streaming may still change; Complete and Errored are terminal.
const (
	StatusPending   = "pending"
	StatusStreaming = "streaming"
	StatusComplete  = "complete"
	StatusErrored   = "errored"
)

// Message is one transcript entry. ID is assigned at creation and never
// changes; for bot entries Text grows while the reply streams and freezes
// once the entry reaches a terminal status.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Terminal reports whether the entry can no longer change.
func (m Message) Terminal() bool {
	return m.Status == StatusComplete || m.Status == StatusErrored
}
