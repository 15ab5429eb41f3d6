// signal.go provides the subscription contract for host lifecycle events.

package rum

import (
	"sort"
	"sync"
)

// Signal is a payload-free event source such as "application suspended".
type Signal interface {
	// Subscribe registers fn and returns a function that removes it.
	Subscribe(fn func()) (unsubscribe func())
}

// NavigationEvent describes a view transition reported by the host router.
type NavigationEvent struct {
	From string
	To   string
}

// Broadcaster is a Signal the host fires directly. It is safe for
// concurrent use.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

var _ Signal = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func())}
}

// Subscribe implements Signal. Calling the returned function more than once is
// harmless.
func (b *Broadcaster) Subscribe(fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func())
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Fire calls every subscriber in subscription order.
func (b *Broadcaster) Fire() {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
