package wsi

import (
	"slices"
	"sync"
)

// Queue is the ordered list of pending window-system events. Producers on
// any goroutine append; only the consumer takes. Every operation is a short
// critical section and none of them block.
//
// Order is FIFO except for TakeFirstNonUserInput, which searches forward
// past queued input.
type Queue struct {
	mu     sync.Mutex
	events []*Event
	seq    uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Append adds e at the tail and assigns its sequence number.
func (q *Queue) Append(e *Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	e.Seq = q.seq
	q.events = append(q.events, e)
}

// Prepend adds e at the head. It still receives the next sequence number:
// Seq records arrival, not position.
func (q *Queue) Prepend(e *Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	e.Seq = q.seq
	q.events = slices.Insert(q.events, 0, e)
}

// TakeFirst removes and returns the head.
func (q *Queue) TakeFirst() (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	e := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return e, true
}

// TakeFirstNonUserInput removes and returns the first event that is not
// user input, leaving queued input in place.
func (q *Queue) TakeFirstNonUserInput() (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.events {
		if !e.Kind().IsUserInput() {
			q.events = slices.Delete(q.events, i, i+1)
			return e, true
		}
	}
	return nil, false
}

// PeekFirstOfKind returns the first queued event of kind without removing
// it.
func (q *Queue) PeekFirstOfKind(k Kind) (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.events {
		if e.Kind() == k {
			return e, true
		}
	}
	return nil, false
}

// Remove drops e by identity and reports whether it was queued.
func (q *Queue) Remove(e *Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := slices.Index(q.events, e)
	if i < 0 {
		return false
	}
	q.events = slices.Delete(q.events, i, i+1)
	return true
}

// Count returns the number of queued events.
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear empties the queue and returns what was in it.
func (q *Queue) Clear() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := q.events
	q.events = nil
	return dropped
}
