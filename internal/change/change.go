// Package change implements the Store's subscription bus: a registry
// of per-subscriber channels that every committed content mutation is
// fanned out onto, modeled on the teacher's subscriber registry in
// ws/internal/shared/broadcast.go (adapted from per-channel WebSocket
// fan-out to an unconditional whole-tree change feed, since the spec
// has no topic concept).
package change

import (
	"sync"
	"time"
)

// Kind distinguishes an insert (covers both Post and Update — both are
// a Content upsert) from a removal.
type Kind int

const (
	Insert Kind = iota
	Remove
)

// Event describes one committed mutation to the content tree.
type Event struct {
	Kind      Kind
	Key       []byte // full node id
	Value     []byte // encoded node body; empty on Remove
	Published time.Time
}

// Bus fans out Events to every registered subscriber. Each subscriber
// gets its own buffered channel so one slow reader cannot block
// delivery to the others; a full channel drops the event for that
// subscriber only (mirrors the teacher's slow-client handling, which
// disconnects rather than blocks the publisher).
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a new subscriber with the given channel buffer
// size and returns the channel plus a token to Unsubscribe with.
func (b *Bus) Subscribe(buffer int) (ch <-chan Event, token uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	c := make(chan Event, buffer)
	b.subs[id] = c
	return c, id
}

// Unsubscribe removes and closes the subscriber channel for token.
func (b *Bus) Unsubscribe(token uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.subs[token]; ok {
		delete(b.subs, token)
		close(c)
	}
}

// Publish fans ev out to every current subscriber, non-blocking. The
// timestamp used for fan-out latency metrics is stamped here if the
// caller left it zero.
func (b *Bus) Publish(ev Event) {
	if ev.Published.IsZero() {
		ev.Published = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.subs {
		select {
		case c <- ev:
		default:
			// subscriber too slow for this event; it will still see
			// subsequent events and can reconcile via a fresh List.
		}
	}
}
