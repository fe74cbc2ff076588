package backend

import (
	"sync"

	"github.com/glasswing-io/tray-agent/internal/tray"
)

// queueCap bounds pending events. A caller that stops polling sheds the
// oldest events first.
const queueCap = 1024

// eventQueue buffers raw tray notifications until the session polls them.
// Events come out in arrival order, one per pop.
type eventQueue struct {
	mu     sync.Mutex
	events []tray.RawEvent
}

func (q *eventQueue) push(ev tray.RawEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) >= queueCap {
		q.events = q.events[1:]
	}
	q.events = append(q.events, ev)
}

func (q *eventQueue) pop() tray.RawEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return tray.RawEvent{Code: tray.CodeNone}
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev
}

func (q *eventQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
