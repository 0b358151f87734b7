package pipeline

import "sync"

// Step names a stage of the lead lifecycle handled by the loop.
type Step int

const (
	// StepValidate moves a pending lead to validating and asks the Validator.
	StepValidate Step = iota + 1
	// StepPool places an approved lead in the pool.
	StepPool
	// StepScore asks the ICPScorer and records a new analysis version.
	StepScore
	// StepQualify moves a lead whose analysis reaches the qualify band to qualified.
	StepQualify
	// StepPromote links a qualified lead to a company.
	StepPromote
)

var stepNames = map[Step]string{
	StepValidate: "validate",
	StepPool:     "pool",
	StepScore:    "score",
	StepQualify:  "qualify",
	StepPromote:  "promote",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Event is one lifecycle step of one lead.
type Event struct {
	Step      Step
	LeadID    string
	FlowToken string
	Seq       int64
}

// eventQueue is a thread-safe unbounded FIFO queue for events.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Continue adds a follow-on event of a flow already in the queue. It is
// accepted after Close so flows submitted before Close can complete.
func (q *eventQueue) Continue(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, e)
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. The
// channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
