package queue

import (
	"context"
	"sync"

	"scouter/pkg/apperror"
	"scouter/profile"
)

// Manager owns every Queue a client process has open, keyed by the
// entity's natural identity. It exists so a single shutdown call can drain
// every in-flight queue regardless of how many profiles a process tracks.
type Manager struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{queues: make(map[string]*Queue)}
}

// Register binds a new Queue for entity/prof and tracks it for Shutdown.
// Registering the same entity key twice replaces the prior queue without
// draining it; callers that want a clean swap should Shutdown first.
func (m *Manager) Register(entity profile.Entity, prof *profile.Profile, sink Sink, opts ...Option) (*Queue, error) {
	q, err := New(entity, prof, sink, opts...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.queues[entity.Key()] = q
	m.mu.Unlock()
	return q, nil
}

// Get returns the queue registered for an entity key, if any.
func (m *Manager) Get(entityKey string) (*Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[entityKey]
	return q, ok
}

// Shutdown drains every tracked queue concurrently and returns the first
// error encountered (if any), after every queue has had a chance to drain.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.queues = make(map[string]*Queue)
	m.mu.Unlock()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, q := range queues {
		wg.Add(1)
		go func(q *Queue) {
			defer wg.Done()
			if err := q.Shutdown(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(q)
	}
	wg.Wait()
	if firstErr != nil {
		return apperror.Wrap(firstErr, apperror.CodeTimeout, "one or more queues failed to shut down cleanly")
	}
	return nil
}
