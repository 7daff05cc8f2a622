package events

import (
	"context"
	"sync"
)

// Broadcaster fans emitted events out to live subscribers. Emit never blocks
// a transition: a subscriber whose channel is full misses the event.
type Broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan *Event
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan *Event)}
}

// Emit implements the Emitter interface.
func (b *Broadcaster) Emit(evt *Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a subscriber for every subsequent event. The returned
// cancel deregisters and closes the channel; it also runs when the context
// ends.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *Event, func()) {
	ch := make(chan *Event, 32)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
			b.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}

// Tee emits each event to every member in order.
type Tee []Emitter

// Emit implements the Emitter interface.
func (t Tee) Emit(evt *Event) {
	for _, e := range t {
		if e != nil {
			e.Emit(evt)
		}
	}
}
