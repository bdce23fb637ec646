package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/repository"
)

// ErrClosed is returned by operations submitted after Close
var ErrClosed = errors.New("store: closed")

type opResult struct {
	changed bool
	state   *entity.PersistedState
	err     error
}

type op struct {
	// apply mutates the state and reports whether it must be saved
	apply func(*entity.PersistedState) bool
	// snapshot asks for a copy of the state after apply
	snapshot bool
	done     chan opResult
}

// StateManager implements repository.StateRepository. A single goroutine owns
// the state and runs every load-mutate-save cycle in submission order, so
// concurrent captures never overwrite each other's additions.
type StateManager struct {
	store  repository.StateStore
	ops    chan op
	logger *slog.Logger

	closed bool
	mu     sync.RWMutex
	wg     sync.WaitGroup

	// state is owned by run; nil means "reload from the store"
	state *entity.PersistedState
}

// NewStateManager starts the writer goroutine over store
func NewStateManager(store repository.StateStore, logger *slog.Logger) *StateManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &StateManager{
		store:  store,
		ops:    make(chan op, 64),
		logger: logger,
	}
	m.wg.Add(1)
	go m.run()
	return m
}

func (m *StateManager) run() {
	defer m.wg.Done()
	for o := range m.ops {
		o.done <- m.exec(o)
	}
}

func (m *StateManager) exec(o op) opResult {
	// the context of the submitter may already be gone; the store call
	// belongs to the writer
	ctx := context.Background()

	if m.state == nil {
		state, err := m.store.Load(ctx)
		if err != nil {
			return opResult{err: err}
		}
		m.state = state
	}

	var res opResult
	if o.apply != nil {
		res.changed = o.apply(m.state)
	}
	if res.changed {
		if err := m.store.Save(ctx, m.state); err != nil {
			m.logger.Error("store: save failed", "error", err)
			// drop the unsaved mutation
			m.state = nil
			return opResult{err: err}
		}
	}
	if o.snapshot {
		res.state = m.state.Clone()
	}
	return res
}

func (m *StateManager) submit(ctx context.Context, o op) (opResult, error) {
	o.done = make(chan opResult, 1)

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return opResult{}, ErrClosed
	}
	select {
	case m.ops <- o:
		m.mu.RUnlock()
	case <-ctx.Done():
		m.mu.RUnlock()
		return opResult{}, ctx.Err()
	}

	select {
	case res := <-o.done:
		return res, res.err
	case <-ctx.Done():
		return opResult{}, ctx.Err()
	}
}

// MarkCaptured implements repository.StateRepository
func (m *StateManager) MarkCaptured(ctx context.Context, url string) (bool, error) {
	res, err := m.submit(ctx, op{apply: func(s *entity.PersistedState) bool {
		return s.CapturedURLs.Add(url)
	}})
	return res.changed, err
}

// ReserveKey implements repository.StateRepository
func (m *StateManager) ReserveKey(ctx context.Context, key string) (bool, error) {
	res, err := m.submit(ctx, op{apply: func(s *entity.PersistedState) bool {
		return s.UniqueItemKeys.Add(key)
	}})
	return res.changed, err
}

// ReleaseKey implements repository.StateRepository
func (m *StateManager) ReleaseKey(ctx context.Context, key string) error {
	_, err := m.submit(ctx, op{apply: func(s *entity.PersistedState) bool {
		if !s.UniqueItemKeys.Has(key) {
			return false
		}
		delete(s.UniqueItemKeys, key)
		return true
	}})
	return err
}

// AppendItem implements repository.StateRepository
func (m *StateManager) AppendItem(ctx context.Context, item entity.CanonicalItem) error {
	item.Fill()
	_, err := m.submit(ctx, op{apply: func(s *entity.PersistedState) bool {
		s.UniqueItems = append(s.UniqueItems, item)
		return true
	}})
	return err
}

// Snapshot implements repository.StateRepository
func (m *StateManager) Snapshot(ctx context.Context) (*entity.PersistedState, error) {
	res, err := m.submit(ctx, op{snapshot: true})
	return res.state, err
}

// Clear implements repository.StateRepository
func (m *StateManager) Clear(ctx context.Context) error {
	_, err := m.submit(ctx, op{apply: func(s *entity.PersistedState) bool {
		*s = *entity.NewPersistedState()
		return true
	}})
	return err
}

// Close stops accepting operations and waits for queued ones to finish
func (m *StateManager) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.ops)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
