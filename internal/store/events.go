package store

import "sync"

// eventBuffer is the per-subscriber channel capacity. Events beyond it are
// dropped rather than blocking the writer.
const eventBuffer = 64

// broker fans committed writes out to subscribers.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ChangeEvent
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan ChangeEvent)}
}

func (b *broker) subscribe() (<-chan ChangeEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ChangeEvent, eventBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// publish sends events to every subscriber without blocking.
func (b *broker) publish(events ...ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				// Subscriber is behind; it will re-read the store anyway.
			}
		}
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
}
