package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FlowManager hands out isolated flow instances to HTTP clients, keyed by
// an opaque flow id. Each instance is owned by exactly one client
// conversation; the manager never shares one across ids. Idle flows are
// evicted after the TTL so abandoned modals do not leak engines.
type FlowManager[F any] struct {
	mu      sync.Mutex
	flows   map[string]*flowEntry[F]
	ttl     time.Duration
	onEvict func(F)
	logger  *logrus.Logger
}

type flowEntry[F any] struct {
	flow     F
	lastSeen time.Time
}

func NewFlowManager[F any](ttl time.Duration, onEvict func(F), logger *logrus.Logger) *FlowManager[F] {
	return &FlowManager[F]{
		flows:   make(map[string]*flowEntry[F]),
		ttl:     ttl,
		onEvict: onEvict,
		logger:  logger,
	}
}

// Put registers a new flow instance and returns its id.
func (m *FlowManager[F]) Put(flow F) string {
	id := uuid.New().String()

	m.mu.Lock()
	m.sweepLocked()
	m.flows[id] = &flowEntry[F]{flow: flow, lastSeen: time.Now()}
	m.mu.Unlock()

	return id
}

// Get returns the flow for id and refreshes its idle timer.
func (m *FlowManager[F]) Get(id string) (F, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.flows[id]
	if !ok {
		var zero F
		return zero, false
	}
	entry.lastSeen = time.Now()
	return entry.flow, true
}

// Remove evicts the flow for id, running the eviction hook.
func (m *FlowManager[F]) Remove(id string) {
	m.mu.Lock()
	entry, ok := m.flows[id]
	delete(m.flows, id)
	m.mu.Unlock()

	if ok && m.onEvict != nil {
		m.onEvict(entry.flow)
	}
}

func (m *FlowManager[F]) sweepLocked() {
	cutoff := time.Now().Add(-m.ttl)
	for id, entry := range m.flows {
		if entry.lastSeen.Before(cutoff) {
			delete(m.flows, id)
			if m.onEvict != nil {
				// Eviction hooks may block on flow teardown; keep them off
				// the manager lock.
				go m.onEvict(entry.flow)
			}
			m.logger.WithField("flow_id", id).Debug("Evicted idle flow")
		}
	}
}
