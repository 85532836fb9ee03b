package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/spindleworks/assistant/backend/internal/model/assistant"
)

// ErrNotInitialized signals a send attempted before a session handle exists.
var ErrNotInitialized = errors.New("chat session not initialized")

// Manager owns the single conversation handle to the remote model. It is
// created once per process and shared by every turn; the remote side of the
// contract owns conversational memory, so committed turns accumulate here
// and are replayed as history on each send.
type Manager struct {
	mu        sync.Mutex
	chain     compose.Runnable[map[string]any, *schema.Message]
	profile   assistant.Profile
	streaming bool
	history   []*schema.Message
}

// NewManager compiles the prompt/model chain for the assistant profile.
// It must be called exactly once, before any SendTurn. With streaming
// disabled, replies are generated in one model call and delivered as a
// single fragment.
func NewManager(ctx context.Context, chatModel model.ChatModel, profile assistant.Profile, streaming bool) (*Manager, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Manager{chain: runnable, profile: profile, streaming: streaming}, nil
}

// SendTurn submits userText as the next conversational turn and returns the
// reply as a lazy, forward-only fragment stream. The stream ends with io.EOF
// when the reply is complete; any other error from Recv means the turn failed
// and the turn is not committed to history.
func (m *Manager) SendTurn(ctx context.Context, userText string) (*schema.StreamReader[*schema.Message], error) {
	if m == nil {
		return nil, ErrNotInitialized
	}

	m.mu.Lock()
	history := make([]*schema.Message, len(m.history))
	copy(history, m.history)
	m.mu.Unlock()

	input := map[string]any{
		"system":  m.profile.SystemPrompt,
		"history": history,
		"query":   userText,
	}

	if !m.streaming {
		return m.generateTurn(ctx, input, userText)
	}

	stream, err := m.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream model output: %w", err)
	}

	return m.tee(stream, userText), nil
}

// generateTurn runs the chain in one blocking call and replays the reply as
// a single-fragment stream, keeping the SendTurn contract unchanged.
func (m *Manager) generateTurn(ctx context.Context, input map[string]any, userText string) (*schema.StreamReader[*schema.Message], error) {
	reply, err := m.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run chat chain: %w", err)
	}

	m.commit(userText, []*schema.Message{reply})

	out, writer := schema.Pipe[*schema.Message](1)
	writer.Send(reply, nil)
	writer.Close()
	return out, nil
}

// tee forwards model fragments to the caller while accumulating the reply,
// committing the finished turn to history only after a clean drain.
func (m *Manager) tee(stream *schema.StreamReader[*schema.Message], userText string) *schema.StreamReader[*schema.Message] {
	out, writer := schema.Pipe[*schema.Message](8)

	go func() {
		defer stream.Close()
		defer writer.Close()

		chunks := make([]*schema.Message, 0, 8)
		for {
			chunk, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				writer.Send(nil, recvErr)
				return
			}
			if chunk == nil {
				continue
			}

			chunks = append(chunks, chunk)
			if closed := writer.Send(chunk, nil); closed {
				return
			}
		}

		m.commit(userText, chunks)
	}()

	return out
}

func (m *Manager) commit(userText string, chunks []*schema.Message) {
	replyText := ""
	if len(chunks) > 0 {
		reply, err := schema.ConcatMessages(chunks)
		if err != nil {
			log.Printf("[session] failed to concat reply, committing turn without it: %v", err)
		} else {
			replyText = reply.Content
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history,
		schema.UserMessage(userText),
		schema.AssistantMessage(replyText, nil),
	)
}

func (m *Manager) historyLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}
