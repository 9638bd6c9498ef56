package engine

import (
	"sync"

	"github.com/pagegrab/pagegrab/internal/models"
)

// Event is the sole contract between the core and any presentation layer.
// One event is emitted on every tracked stage or progress transition.
type Event struct {
	TaskID        string
	Stage         models.Stage
	Progress      int // 0-100
	Message       string
	Segment       int
	TotalSegments int
	Size          int64
}

// eventBus fans events out to any number of subscribers. Sends never block
// the pipeline: a subscriber that falls behind loses intermediate events.
type eventBus struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

const eventBuffer = 128

func (b *eventBus) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
