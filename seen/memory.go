package seen

import (
	"context"
	"sync"
)

// Memory is the in-process Set. State is lost when the process exits.
type Memory struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{urls: make(map[string]struct{})}
}

func (m *Memory) MarkIfNew(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.urls[url]; ok {
		return false, nil
	}
	m.urls[url] = struct{}{}
	return true, nil
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.urls), nil
}

func (m *Memory) Close() error {
	return nil
}
