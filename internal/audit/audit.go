// Package audit emits security-relevant events to an external sink on a
// best-effort basis. Emission never blocks or fails the calling
// operation; when the queue is full the event is dropped and counted.
package audit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event describes one audit-worthy action.
type Event struct {
	Action   string
	ClientID string
	UserID   string
	Detail   map[string]interface{}
	At       time.Time
}

// Sink receives audit events. Implementations must tolerate bursts;
// errors are swallowed by the emitter.
type Sink interface {
	Write(Event)
}

// LogrusSink writes audit events as structured log lines. It is the
// default sink when no external collector is configured.
type LogrusSink struct {
	Logger *logrus.Logger
}

func (s *LogrusSink) Write(e Event) {
	s.Logger.WithFields(logrus.Fields{
		"audit":     true,
		"action":    e.Action,
		"client_id": e.ClientID,
		"user_id":   e.UserID,
		"detail":    e.Detail,
		"at":        e.At.UTC().Format(time.RFC3339),
	}).Info("audit event")
}

// Emitter is a bounded fire-and-forget event queue with a single worker.
type Emitter struct {
	events  chan Event
	sink    Sink
	dropped int64
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewEmitter starts an emitter draining into sink. A buffer of a few
// hundred events rides out sink hiccups without holding request memory.
func NewEmitter(sink Sink, buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	e := &Emitter{
		events: make(chan Event, buffer),
		sink:   sink,
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) run() {
	for ev := range e.events {
		e.sink.Write(ev)
	}
	close(e.done)
}

// Emit enqueues an event without blocking. Full queue means the event is
// dropped; audit must never be on the critical path.
func (e *Emitter) Emit(action, clientID, userID string, detail map[string]interface{}) {
	if e == nil {
		return
	}
	ev := Event{Action: action, ClientID: clientID, UserID: userID, Detail: detail, At: time.Now()}
	select {
	case e.events <- ev:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	}
}

// Dropped returns the number of events discarded due to a full queue.
func (e *Emitter) Dropped() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close flushes queued events and stops the worker.
func (e *Emitter) Close() {
	e.once.Do(func() {
		close(e.events)
		<-e.done
	})
}
