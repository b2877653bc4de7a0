package bus

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBus delivers events to in-process subscribers. It is used when no
// redis address is configured, so a single instance still sees its own events.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]func(Event)
	next   int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[int]func(Event){}}
}

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	raw, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	ev, err = decodeEvent(raw)
	if err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("memory bus closed")
	}
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(ev)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory bus closed")
	}
	id := b.next
	b.next++
	b.subs[id] = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]func(Event){}
	return nil
}
