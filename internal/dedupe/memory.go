package dedupe

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Claimer. Claims expire after ttl and are swept
// by a background loop.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[int64]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemory starts a Memory claimer that sweeps every sweep interval.
func NewMemory(ttl, sweep time.Duration) *Memory {
	m := &Memory{
		ttl:    ttl,
		now:    time.Now,
		seen:   make(map[int64]time.Time),
		stopCh: make(chan struct{}),
	}
	if sweep > 0 {
		go m.cleanLoop(sweep)
	}
	return m
}

func (m *Memory) Claim(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts, found := m.seen[id]; found && m.now().Sub(ts) < m.ttl {
		return false, nil
	}
	m.seen[id] = m.now()
	return true, nil
}

func (m *Memory) Release(_ context.Context, id int64) error {
	m.mu.Lock()
	delete(m.seen, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Backend() string { return "memory" }

// Close stops the sweeper.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	return nil
}

func (m *Memory) cleanLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ts := range m.seen {
		if m.now().Sub(ts) >= m.ttl {
			delete(m.seen, id)
		}
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
