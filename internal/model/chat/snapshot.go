package chat

// Snapshot is the full transcript view published to the presentation layer
// after every change: the ordered entries plus the in-flight flag.
type Snapshot struct {
	Messages []Message `json:"messages"`
	Busy     bool      `json:"busy"`
}
