package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/spindleworks/assistant/backend/internal/model/assistant"
)

// fakeChatModel replays scripted fragments and records every prompt it was
// streamed with.
type fakeChatModel struct {
	mu            sync.Mutex
	fragments     []string
	streamErr     error
	inputs        [][]*schema.Message
	generateCalls int
	streamCalls   int
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.generateCalls++
	f.mu.Unlock()

	return schema.AssistantMessage(strings.Join(f.fragments, ""), nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.streamCalls++
	f.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](len(f.fragments) + 1)
	go func() {
		defer sw.Close()
		for _, fragment := range f.fragments {
			if closed := sw.Send(schema.AssistantMessage(fragment, nil), nil); closed {
				return
			}
		}
		if f.streamErr != nil {
			sw.Send(nil, f.streamErr)
		}
	}()
	return sr, nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func (f *fakeChatModel) recordedInputs() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs
}

func collect(sr *schema.StreamReader[*schema.Message]) ([]string, error) {
	defer sr.Close()
	var fragments []string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return fragments, nil
		}
		if err != nil {
			return fragments, err
		}
		if chunk != nil {
			fragments = append(fragments, chunk.Content)
		}
	}
}

func drain(sr *schema.StreamReader[*schema.Message]) (string, error) {
	fragments, err := collect(sr)
	return strings.Join(fragments, ""), err
}

func newTestManager(t *testing.T, fake *fakeChatModel) *Manager {
	t.Helper()
	manager, err := NewManager(context.Background(), fake, assistant.Default(), true)
	if err != nil {
		t.Fatalf("NewManager err: %v", err)
	}
	return manager
}

func TestSendTurnStreamsFragments(t *testing.T) {
	fake := &fakeChatModel{fragments: []string{"We offer ", "models A, B, C."}}
	manager := newTestManager(t, fake)

	stream, err := manager.SendTurn(context.Background(), "What spindle models do you sell?")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}

	text, err := drain(stream)
	if err != nil {
		t.Fatalf("drain err: %v", err)
	}
	if text != "We offer models A, B, C." {
		t.Fatalf("unexpected reply: %q", text)
	}

	if got := manager.historyLen(); got != 2 {
		t.Fatalf("expected 2 committed history messages, got %d", got)
	}
}

func TestSendTurnPromptShape(t *testing.T) {
	fake := &fakeChatModel{fragments: []string{"ok"}}
	profile := assistant.Default()
	manager := newTestManager(t, fake)

	stream, err := manager.SendTurn(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}
	if _, err := drain(stream); err != nil {
		t.Fatalf("drain err: %v", err)
	}

	inputs := fake.recordedInputs()
	if len(inputs) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(inputs))
	}

	prompt := inputs[0]
	if len(prompt) != 2 {
		t.Fatalf("expected system + user message, got %d messages", len(prompt))
	}
	if prompt[0].Role != schema.System || prompt[0].Content != profile.SystemPrompt {
		t.Fatalf("unexpected system message: %+v", prompt[0])
	}
	if prompt[1].Role != schema.User || prompt[1].Content != "hello" {
		t.Fatalf("unexpected user message: %+v", prompt[1])
	}
}

func TestHistoryReplayedOnNextTurn(t *testing.T) {
	fake := &fakeChatModel{fragments: []string{"First answer."}}
	manager := newTestManager(t, fake)

	stream, err := manager.SendTurn(context.Background(), "first question")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}
	if _, err := drain(stream); err != nil {
		t.Fatalf("drain err: %v", err)
	}

	fake.fragments = []string{"Second answer."}
	stream, err = manager.SendTurn(context.Background(), "second question")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}
	if _, err := drain(stream); err != nil {
		t.Fatalf("drain err: %v", err)
	}

	inputs := fake.recordedInputs()
	if len(inputs) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(inputs))
	}

	prompt := inputs[1]
	if len(prompt) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(prompt))
	}
	if prompt[1].Role != schema.User || prompt[1].Content != "first question" {
		t.Fatalf("unexpected replayed user turn: %+v", prompt[1])
	}
	if prompt[2].Role != schema.Assistant || prompt[2].Content != "First answer." {
		t.Fatalf("unexpected replayed assistant turn: %+v", prompt[2])
	}
	if prompt[3].Role != schema.User || prompt[3].Content != "second question" {
		t.Fatalf("unexpected new user turn: %+v", prompt[3])
	}
}

func TestFailedTurnNotCommitted(t *testing.T) {
	fake := &fakeChatModel{
		fragments: []string{"partial "},
		streamErr: errors.New("connection reset"),
	}
	manager := newTestManager(t, fake)

	stream, err := manager.SendTurn(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}

	if _, err := drain(stream); err == nil {
		t.Fatal("expected stream error")
	}

	if got := manager.historyLen(); got != 0 {
		t.Fatalf("failed turn must not commit history, got %d messages", got)
	}
}

func TestNonStreamingTurnDeliversSingleFragment(t *testing.T) {
	fake := &fakeChatModel{fragments: []string{"We offer ", "models A, B, C."}}
	manager, err := NewManager(context.Background(), fake, assistant.Default(), false)
	if err != nil {
		t.Fatalf("NewManager err: %v", err)
	}

	stream, err := manager.SendTurn(context.Background(), "What spindle models do you sell?")
	if err != nil {
		t.Fatalf("SendTurn err: %v", err)
	}

	fragments, err := collect(stream)
	if err != nil {
		t.Fatalf("collect err: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("expected a single fragment, got %d (%q)", len(fragments), fragments)
	}
	if fragments[0] != "We offer models A, B, C." {
		t.Fatalf("unexpected reply: %q", fragments[0])
	}

	if fake.generateCalls != 1 || fake.streamCalls != 0 {
		t.Fatalf("expected one blocking call and no stream calls, got %d/%d", fake.generateCalls, fake.streamCalls)
	}
	if got := manager.historyLen(); got != 2 {
		t.Fatalf("expected committed turn, got %d history messages", got)
	}
}

func TestNilManagerSendTurn(t *testing.T) {
	var manager *Manager
	if _, err := manager.SendTurn(context.Background(), "hello"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
