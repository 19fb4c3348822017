package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/dusk-indust/vlab/internal/agent"
)

// EventType classifies a progress event.
type EventType string

const (
	EventStepStart     EventType = "step_start"
	EventStepComplete  EventType = "step_complete"
	EventAgentThinking EventType = "agent_thinking"
	EventToolUsage     EventType = "tool_usage"
	EventDecisionMade  EventType = "decision_made"
	EventError         EventType = "error"
)

// Event is one entry of a phase's progress log. Progress is a percentage in
// [0,100].
type Event struct {
	Type      EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	StepName  string         `json:"step_name"`
	Agent     agent.Role     `json:"agent,omitempty"`
	Progress  float64        `json:"progress"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// EventLog is an append-only, ordered event log with a single producer and
// any number of consumers. Consumers either read snapshots (Events, Since) or
// follow the log live with Subscribe until it is closed.
type EventLog struct {
	mu      sync.Mutex
	events  []Event
	closed  bool
	changed chan struct{} // closed and replaced on every append and on Close
	now     func() time.Time
}

// NewEventLog creates an empty, open EventLog.
func NewEventLog() *EventLog {
	return &EventLog{
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// Append adds e to the end of the log, stamping it with the current time if
// it has none. Appending to a closed log is a no-op.
func (l *EventLog) Append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	l.events = append(l.events, e)
	l.notifyLocked()
}

// Close marks the log complete. Subscribers drain what is left and then see
// their channel closed. Close is idempotent.
func (l *EventLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.notifyLocked()
}

func (l *EventLog) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// Len returns the number of events appended so far.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Events returns a copy of every event in emission order.
func (l *EventLog) Events() []Event {
	return l.Since(0)
}

// Since returns a copy of the events from index i onward. The result is never
// nil.
func (l *EventLog) Since(i int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 {
		i = 0
	}
	if i >= len(l.events) {
		return []Event{}
	}
	out := make([]Event, len(l.events)-i)
	copy(out, l.events[i:])
	return out
}

// Subscribe streams every event of the log, starting with the first one, in
// emission order. Each subscriber keeps its own cursor so no event is skipped
// or delivered twice. The channel is closed once the log is closed and fully
// drained, or when ctx is done.
func (l *EventLog) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)

		cursor := 0
		for {
			l.mu.Lock()
			batch := l.events[cursor:len(l.events):len(l.events)]
			closed := l.closed
			wait := l.changed
			l.mu.Unlock()

			for _, e := range batch {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
			cursor += len(batch)

			if len(batch) > 0 {
				continue
			}
			if closed {
				return
			}
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
