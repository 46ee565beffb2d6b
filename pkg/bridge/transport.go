package bridge

import (
	"context"
	"sync"
)

// Transport is a publish/subscribe message bus.
type Transport interface {
	// Publish delivers payload to current subscribers of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe starts listening on channel. The subscription is active
	// when Subscribe returns.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is an active channel listener.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// subscriptionBuffer bounds the messages queued for a slow reader.
const subscriptionBuffer = 64

// MemoryTransport is an in-process Transport. Like Redis pub/sub it drops
// messages for subscribers that are not reading.
type MemoryTransport struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryTransport creates an empty in-process bus.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (t *MemoryTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for sub := range t.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

func (t *MemoryTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		transport: t,
		channel:   channel,
		ch:        make(chan []byte, subscriptionBuffer),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.subs[channel] == nil {
		t.subs[channel] = make(map[*memorySubscription]struct{})
	}
	t.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Subscribers reports how many listeners channel has.
func (t *MemoryTransport) Subscribers(channel string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[channel])
}

func (t *MemoryTransport) remove(sub *memorySubscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs[sub.channel], sub)
	if len(t.subs[sub.channel]) == 0 {
		delete(t.subs, sub.channel)
	}
}

type memorySubscription struct {
	transport *MemoryTransport
	channel   string
	ch        chan []byte
	once      sync.Once
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		// Unregister first so Publish never sends on a closed channel
		s.transport.remove(s)
		close(s.ch)
	})
	return nil
}
