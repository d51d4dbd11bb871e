// Package eventbus delivers progress events to in-process subscribers and other processes.
package eventbus

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core"
)

var ErrClosed = errors.New("event bus closed")

// Bus fans events out to subscribers over buffered channels.
// A subscriber that falls behind loses events rather than blocking publishers.
type Bus struct {
	logger core.Logger
	buffer int

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan core.Event
	closed bool
}

var _ core.EventPublisher = (*Bus)(nil)

func NewBus(logger core.Logger, buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus{
		logger: logger,
		buffer: buffer,
		subs:   make(map[int]chan core.Event),
	}
}

func (b *Bus) Publish(ctx context.Context, ev core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for id, ch := range b.subs {
		select {
		case ch <- copyEvent(ev):
		default:
			b.logger.Warn("eventbus: subscriber buffer full, dropping event", map[string]interface{}{
				"subscriber": id,
				"event_id":   ev.ID,
				"event_type": string(ev.Type),
			})
		}
	}
	return nil
}

// Subscribe returns the event channel and a func to stop receiving. The channel is closed on unsubscribe.
func (b *Bus) Subscribe() (<-chan core.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan core.Event, b.buffer)
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
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops the bus and closes every subscriber channel. Buffered events stay readable.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}

func copyEvent(ev core.Event) core.Event {
	if ev.Data == nil {
		return ev
	}
	data := make(map[string]interface{}, len(ev.Data))
	for k, v := range ev.Data {
		data[k] = v
	}
	ev.Data = data
	return ev
}

// Multi publishes to every publisher and reports the first failure.
type Multi []core.EventPublisher

func (m Multi) Publish(ctx context.Context, ev core.Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
