package checker

import (
	"sync"

	"github.com/pavelanni/qchecker/internal/model"
)

// EventType names a state transition.
type EventType string

const (
	EventLoaded     EventType = "loaded"
	EventLoadFailed EventType = "load_failed"
	EventChecking   EventType = "checking"
	EventChecked    EventType = "checked"
	EventFailed     EventType = "failed"
	EventProgress   EventType = "progress"
	EventBatchDone  EventType = "batch_done"
)

// Event is a state transition published to subscribers.
type Event struct {
	Type       EventType    `json:"type"`
	QuestionID string       `json:"question_id,omitempty"`
	Status     model.Status `json:"status,omitempty"`
	Error      string       `json:"error,omitempty"`
	Done       int          `json:"done,omitempty"`
	Total      int          `json:"total,omitempty"`
}

const subscriberBuffer = 64

type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// publish never blocks; a full subscriber drops the event.
func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
