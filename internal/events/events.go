// Package events keeps the ordered, append-only record of what happened in
// one session. Transports drain it; the log never waits for them.
package events

import (
	"errors"
	"iter"
	"sync"
	"time"

	"crewsheet/internal/validate"
)

type Type string

const (
	EntryCreated     Type = "entry_created"
	EntryUpdated     Type = "entry_updated"
	LaborRecorded    Type = "labor_recorded"
	MaterialRecorded Type = "material_recorded"
	ValidationFailed Type = "validation_failed"
	ExportProduced   Type = "export_produced"
)

// Event is forwarded verbatim to observers.
type Event struct {
	Seq    int64                 `json:"seq"`
	Type   Type                  `json:"type"`
	Key    string                `json:"key"`
	Fields map[string]any        `json:"fields,omitempty"`
	Errors []validate.FieldError `json:"errors,omitempty"`
	Time   time.Time             `json:"time"`
}

var ErrClosed = errors.New("events: log closed")

// Emitter is the write side used by the tool dispatcher.
type Emitter interface {
	Emit(ev Event) (Event, error)
}

// Log is a session-scoped event sequence. Seq starts at 1.
type Log struct {
	mu     sync.Mutex
	events []Event
	subs   map[int]chan Event
	nextID int
	closed bool
	now    func() time.Time
}

func NewLog() *Log {
	return &Log{subs: make(map[int]chan Event), now: time.Now}
}

// WithClock pins event timestamps; used by tests that compare logs.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Emit appends ev, assigning its sequence number and time. Live
// subscribers whose buffer is full miss the event on their channel; they can
// recover it from Since.
func (l *Log) Emit(ev Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Event{}, ErrClosed
	}
	ev.Seq = int64(len(l.events) + 1)
	if ev.Time.IsZero() {
		ev.Time = l.now().UTC()
	}
	l.events = append(l.events, ev)
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev, nil
}

// Events replays the log from the start. Each call yields the events present
// when iteration reaches them, so a fresh range always starts over.
func (l *Log) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for i := 0; ; i++ {
			l.mu.Lock()
			if i >= len(l.events) {
				l.mu.Unlock()
				return
			}
			ev := l.events[i]
			l.mu.Unlock()
			if !yield(ev) {
				return
			}
		}
	}
}

// Since returns a copy of every event with Seq greater than after.
func (l *Log) Since(after int64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if after < 0 {
		after = 0
	}
	if after >= int64(len(l.events)) {
		return nil
	}
	return append([]Event(nil), l.events[after:]...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Subscribe returns the backlog after fromSeq and a channel of later events.
// The channel is closed by cancel or by Close.
func (l *Log) Subscribe(fromSeq int64, buffer int) ([]Event, <-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var backlog []Event
	if fromSeq < int64(len(l.events)) {
		if fromSeq < 0 {
			fromSeq = 0
		}
		backlog = append([]Event(nil), l.events[fromSeq:]...)
	}
	ch := make(chan Event, buffer)
	if l.closed {
		close(ch)
		return backlog, ch, func() {}
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
	return backlog, ch, cancel
}

// Close ends the session's sequence. Replays still work afterwards.
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

func (l *Log) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
