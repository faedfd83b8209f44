package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient replays scripted responses in order, for offline runs and
// tests. Once the script is exhausted it keeps returning Fallback.
type FakeClient struct {
	mu       sync.Mutex
	script   []json.RawMessage
	Fallback json.RawMessage
	// Prompts records every prompt received.
	Prompts []string
}

func NewFakeClient(responses ...string) *FakeClient {
	f := &FakeClient{Fallback: json.RawMessage(`{"reply":"","calls":[]}`)}
	for _, r := range responses {
		f.script = append(f.script, json.RawMessage(r))
	}
	return f
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(_ context.Context, prompt string, _ any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompts = append(f.Prompts, prompt)
	if len(f.script) == 0 {
		return f.Fallback, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	if !json.Valid(next) {
		return nil, ErrInvalidJSON
	}
	return next, nil
}
