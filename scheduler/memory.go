package scheduler

import (
	"context"
	"io"
	"sync"
)

// Memory is the in-process backend: a slice frontier guarded by one mutex,
// with a condition variable so Dequeue and Join block without polling.
// State is lost when the process exits.
type Memory struct {
	mu       sync.Mutex
	cond     *sync.Cond
	frontier []Item
	inflight map[string]int
	done     int
	closed   bool
}

func NewMemory() *Memory {
	m := &Memory{
		inflight: make(map[string]int),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Memory) Enqueue(ctx context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.frontier = append(m.frontier, item)
	m.cond.Broadcast()
	return nil
}

func (m *Memory) Dequeue(ctx context.Context) (Item, error) {
	// Cancellation has to wake a goroutine parked in cond.Wait.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
		if m.closed {
			return Item{}, io.EOF
		}
		if len(m.frontier) > 0 {
			item := m.frontier[0]
			m.frontier = m.frontier[1:]
			m.inflight[item.URL]++
			return item, nil
		}
		if len(m.inflight) == 0 {
			return Item{}, io.EOF
		}
		m.cond.Wait()
	}
}

func (m *Memory) TaskDone(ctx context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.inflight[item.URL]
	if !ok {
		return nil
	}
	if n <= 1 {
		delete(m.inflight, item.URL)
	} else {
		m.inflight[item.URL] = n - 1
	}
	m.done++

	if len(m.frontier) == 0 && len(m.inflight) == 0 {
		m.cond.Broadcast()
	}
	return nil
}

func (m *Memory) IsDrained(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.frontier) == 0 && len(m.inflight) == 0, nil
}

func (m *Memory) Join(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A closed scheduler processes nothing further, so there is
		// nothing left to wait for.
		if m.closed {
			return nil
		}
		if len(m.frontier) == 0 && len(m.inflight) == 0 {
			return nil
		}
		m.cond.Wait()
	}
}

func (m *Memory) Drain(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frontier = nil
	if len(m.inflight) == 0 {
		m.cond.Broadcast()
	}
	return nil
}

func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inflight := 0
	for _, n := range m.inflight {
		inflight += n
	}
	return Stats{
		Pending:  len(m.frontier),
		InFlight: inflight,
		Done:     m.done,
	}, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cond.Broadcast()
	return nil
}
