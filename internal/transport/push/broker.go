package push

import (
	"context"
	"sync"
)

// Broker is an in-process Channel. Handlers run synchronously on the
// publishing goroutine, outside the broker lock.
type Broker struct {
	mu         sync.Mutex
	subs       map[uint64]subscription
	nextID     uint64
	connected  bool
	reconnects int
}

type subscription struct {
	filter  string
	handler Handler
}

// NewBroker returns a connected broker.
func NewBroker() *Broker {
	return &Broker{
		subs:      make(map[uint64]subscription),
		connected: true,
	}
}

// Publish implements Channel.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return ErrNotConnected
	}

	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if Match(s.filter, topic) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(topic, append([]byte(nil), payload...))
	}

	return nil
}

// Subscribe implements Channel. Subscriptions survive disconnects.
func (b *Broker) Subscribe(_ context.Context, filter string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{filter: filter, handler: h}

	var once sync.Once

	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}, nil
}

// Connected implements Channel.
func (b *Broker) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connected
}

// SetConnected simulates an outage or its end.
func (b *Broker) SetConnected(connected bool) {
	b.mu.Lock()
	b.connected = connected
	b.mu.Unlock()
}

// RequestReconnect implements Reconnector. It only counts requests; use
// SetConnected to bring the broker back.
func (b *Broker) RequestReconnect() {
	b.mu.Lock()
	b.reconnects++
	b.mu.Unlock()
}

// Reconnects returns how many reconnects were requested.
func (b *Broker) Reconnects() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.reconnects
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}
