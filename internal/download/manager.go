package download

import (
	"sync"

	"github.com/rs/zerolog"
)

// Stats is a snapshot of the Manager's bookkeeping.
type Stats struct {
	Pending     int
	Active      int
	Parallelism int
	Admitting   bool
}

// Idle reports whether nothing is pending or active.
func (s Stats) Idle() bool {
	return s.Pending == 0 && s.Active == 0
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = logger
	}
}

// Manager runs work items with bounded parallelism.
//
// Items are admitted in FIFO order while fewer than the configured number
// are active. A completing item frees its slot and wakes the admission
// loop, which exits once the pending queue is empty. Completion order is
// unspecified.
type Manager struct {
	log zerolog.Logger

	mu         sync.Mutex
	cond       *sync.Cond
	limit      int
	pending    []Item
	active     map[string]Item
	admitting  bool
	generation uint64
}

// NewManager creates a Manager running at most parallelism items at once.
// Values below 1 are treated as 1.
func NewManager(parallelism int, opts ...Option) *Manager {
	m := &Manager{
		log:    zerolog.Nop(),
		limit:  max(parallelism, 1),
		active: make(map[string]Item),
	}
	m.cond = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue appends item to the pending queue and starts admission if idle.
//
// It returns ErrDuplicateItem when an item for the same track is already
// pending or active.
func (m *Manager) Enqueue(item Item) error {
	if item == nil {
		return ErrNilItem
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := item.Key()
	if _, ok := m.active[key]; ok {
		return ErrDuplicateItem
	}
	for _, p := range m.pending {
		if p.Key() == key {
			return ErrDuplicateItem
		}
	}

	m.pending = append(m.pending, item)
	if !m.admitting {
		m.admitting = true
		go m.admit(m.generation)
	} else {
		m.cond.Broadcast()
	}
	return nil
}

// SetParallelism changes the number of concurrently active items. Values
// below 1 are treated as 1. Lowering the limit never stops running items;
// it only delays admission until enough of them complete.
func (m *Manager) SetParallelism(n int) {
	m.mu.Lock()
	m.limit = max(n, 1)
	m.cond.Broadcast()
	m.mu.Unlock()

	m.log.Debug().Int("parallelism", max(n, 1)).Msg("parallelism changed")
}

// Parallelism returns the current limit.
func (m *Manager) Parallelism() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}

// Abort clears the pending queue and the active set and stops every item
// that was in either. Pending items complete as cancelled without starting.
func (m *Manager) Abort() {
	m.mu.Lock()
	items := make([]Item, 0, len(m.pending)+len(m.active))
	items = append(items, m.pending...)
	for _, it := range m.active {
		items = append(items, it)
	}
	m.pending = nil
	m.active = make(map[string]Item)
	m.admitting = false
	m.generation++
	m.cond.Broadcast()
	m.mu.Unlock()

	m.log.Info().Int("items", len(items)).Msg("aborting queue")
	for _, it := range items {
		it.Stop()
	}
}

// Stats returns a snapshot of the queue.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Pending:     len(m.pending),
		Active:      len(m.active),
		Parallelism: m.limit,
		Admitting:   m.admitting,
	}
}

// admit is the admission loop. It exits when the queue drains or when an
// Abort started a new generation.
func (m *Manager) admit(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		for gen == m.generation && len(m.pending) > 0 && len(m.active) >= m.limit {
			m.cond.Wait()
		}
		if gen != m.generation {
			return
		}
		if len(m.pending) == 0 {
			m.admitting = false
			m.log.Debug().Msg("queue drained")
			return
		}

		item := m.pending[0]
		m.pending[0] = nil
		m.pending = m.pending[1:]
		key := item.Key()
		m.active[key] = item

		m.log.Debug().
			Str("track", key).
			Int("active", len(m.active)).
			Int("pending", len(m.pending)).
			Msg("starting work item")

		m.mu.Unlock()
		item.OnCompletion(func(it Item, c Completion) {
			m.release(key, it, c)
		})
		item.Start()
		m.mu.Lock()
	}
}

// release removes a completed item from the active set and wakes admission.
func (m *Manager) release(key string, item Item, c Completion) {
	m.mu.Lock()
	if cur, ok := m.active[key]; ok && cur == item {
		delete(m.active, key)
	}
	m.cond.Broadcast()
	m.mu.Unlock()

	switch {
	case c.Err != nil:
		m.log.Error().Err(c.Err).Str("track", key).Msg("work item failed")
	case c.Cancelled:
		m.log.Debug().Str("track", key).Msg("work item cancelled")
	default:
		m.log.Debug().Str("track", key).Msg("work item completed")
	}
}
