// Package progress broadcasts stage-transition events for in-flight
// generation sessions.
package progress

import (
	"sync"
	"time"
)

// Stage identifies a pipeline stage.
type Stage string

const (
	StageInit     Stage = "init"
	StageContext  Stage = "context"
	StageDraft    Stage = "draft"
	StageValidate Stage = "validate"
	StageScore    Stage = "score"
	StageRefine   Stage = "refine"
	StageSave     Stage = "save"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// Status is the state of a stage at the time of the event.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	StatusSkipped  Status = "skipped"
)

// Event is one stage transition within a session.
type Event struct {
	SessionID string
	Stage     Stage
	Status    Status
	Message   string
	Timestamp time.Time
}

// terminal reports whether this event ends its session.
func (e Event) terminal() bool {
	return e.Stage == StageComplete || e.Stage == StageError
}

// subscriberBuffer is each subscriber's channel capacity. When a slow
// consumer fills it, the oldest buffered event is dropped; the producer
// never blocks.
const subscriberBuffer = 64

// tombstoneTTL is how long a completed session's bookkeeping lingers so
// late subscribers still observe a closed channel. After that the slot
// is released without the owner having to call Forget.
const tombstoneTTL = time.Minute

type session struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// Broker is a per-session publish/subscribe channel. One writer per
// session, any number of readers; events within one session are
// delivered in publish order. Sessions across the broker are
// independent and safe for concurrent use.
type Broker struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{sessions: make(map[string]*session), ttl: tombstoneTTL}
}

// Publish delivers an event to every subscriber of its session. After a
// terminal (complete/error) event the session is closed, subscriber
// channels are closed, and later publishes for the session are dropped.
func (b *Broker) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.sessions[ev.SessionID]
	if s == nil {
		s = &session{subs: make(map[int]chan Event)}
		b.sessions[ev.SessionID] = s
	}
	if s.closed {
		return
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Full buffer: drop the oldest event to make room so the
			// producer never waits on a slow consumer.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}

	if ev.terminal() {
		for _, ch := range s.subs {
			close(ch)
		}
		s.closed = true
		s.subs = nil
		time.AfterFunc(b.ttl, func() { b.Forget(ev.SessionID) })
	}
}

// Subscribe returns a channel of events for the session plus a cancel
// function. The channel closes when the session completes or cancel is
// called. Subscribing to an already-completed session returns a closed
// channel.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.sessions[sessionID]
	if s == nil {
		s = &session{subs: make(map[int]chan Event)}
		b.sessions[sessionID] = s
	}

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Forget drops a completed session's bookkeeping. Publishing a terminal
// event already releases subscribers; Forget just frees the map slot.
func (b *Broker) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[sessionID]; ok && s.closed {
		delete(b.sessions, sessionID)
	}
}
