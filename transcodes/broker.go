package transcodes

import (
	"sync"

	"github.com/google/uuid"

	"video-site/ffmpeg"
)

type EventKind string

const (
	EventProgress EventKind = "progress"
	EventStatus   EventKind = "status"
)

type Event struct {
	Kind     EventKind        `json:"kind"`
	JobID    string           `json:"jobId"`
	VideoID  uint             `json:"videoId"`
	Status   Status           `json:"status,omitempty"`
	Progress *ffmpeg.Progress `json:"progress,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type Subscription struct {
	id     uuid.UUID
	userID uint
	Ch     chan Event
}

// Broker fans job events out to the subscriptions of the owning user.
type Broker struct {
	mu        sync.Mutex
	listeners map[uint][]*Subscription
}

func NewBroker() *Broker {
	return &Broker{listeners: map[uint][]*Subscription{}}
}

func (b *Broker) Subscribe(userID uint) *Subscription {
	sub := &Subscription{
		id:     uuid.Must(uuid.NewV7()),
		userID: userID,
		Ch:     make(chan Event, 16),
	}
	b.mu.Lock()
	b.listeners[userID] = append(b.listeners[userID], sub)
	b.mu.Unlock()
	return sub
}

func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[sub.userID]
	kept := subs[:0]
	for _, s := range subs {
		if s.id != sub.id {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.listeners, sub.userID)
	} else {
		b.listeners[sub.userID] = kept
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *Broker) Publish(userID uint, e Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.listeners[userID] {
		select {
		case sub.Ch <- e:
		default:
			log.Debugln("dropping", e.Kind, "event for slow subscriber of user", userID)
		}
	}
}
