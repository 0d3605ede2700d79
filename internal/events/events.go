// Package events provides in-process event emission for pipeline progress
// and outcomes. The server streams these to connected clients; the chat
// layer subscribes for user notifications.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event
type EventType string

const (
	RebalanceRecommendation EventType = "rebalance_recommendation"
	RebalanceExecuted       EventType = "rebalance_executed"
	RebalanceSkipped        EventType = "rebalance_skipped"
	RebalanceRejected       EventType = "rebalance_rejected"
	TradeExecuted           EventType = "trade_executed"
	SignalDegraded          EventType = "signal_degraded"
	CollectionProgress      EventType = "collection_progress"
	JobStarted              EventType = "job_started"
	JobCompleted            EventType = "job_completed"
	JobFailed               EventType = "job_failed"
	ErrorOccurred           EventType = "error_occurred"
)

// Event is an emitted event with its typed payload
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// Listener receives emitted events. Listeners must not block.
type Listener func(Event)

// Manager fans events out to subscribers. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	log       zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		listeners: make(map[int]Listener),
		log:       log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a listener and returns an unsubscribe function.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Emit sends an event to all subscribers. Listener panics are recovered
// so one bad subscriber cannot take down the pipeline.
func (m *Manager) Emit(eventType EventType, module string, data EventData) {
	event := Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error().Interface("panic", r).Str("event", string(eventType)).Msg("Event listener panicked")
				}
			}()
			l(event)
		}()
	}
}
