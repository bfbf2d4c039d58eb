package canvas

import (
	"sync"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// Bus is a synchronous, in-process event bus.
type Bus struct {
	mu       sync.RWMutex
	seq      int
	handlers map[string][]subscription
}

type subscription struct {
	id int
	fn types.EventHandler
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// On registers fn for name and returns its unsubscribe function.
func (b *Bus) On(name string, fn types.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := b.seq
	b.handlers[name] = append(b.handlers[name], subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[name]
		for i, s := range subs {
			if s.id == id {
				b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Trigger calls every handler for name in registration order. Handlers run
// without the bus lock held and may subscribe or trigger further events.
func (b *Bus) Trigger(name string, payload any) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[name]...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(payload)
	}
}
