package exportsink

import (
	"context"
	"sync"

	"crewsheet/internal/csvexport"
)

// Memory keeps the latest export per session and kind.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]string
	// Err, when set, fails every write.
	Err error
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]string)}
}

func (m *Memory) Write(_ context.Context, sessionID string, doc csvexport.Document) (string, error) {
	if m.Err != nil {
		return "", &IOError{Sink: "memory", Kind: doc.Kind, Err: m.Err}
	}
	key := objectKey(sessionID, doc.Kind)
	m.mu.Lock()
	m.docs[key] = doc.Text
	m.mu.Unlock()
	return "memory:" + key, nil
}

func (m *Memory) Read(_ context.Context, sessionID string, kind csvexport.Kind) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.docs[objectKey(sessionID, kind)]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}
