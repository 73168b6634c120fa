package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
)

// Key selects the messages a handler receives. Bundle is only set for
// bundle responses and correlates them to their request.
type Key struct {
	Kind   protocol.Kind
	Bundle string
}

// KeyOf returns the dispatch key of a message.
func KeyOf(msg protocol.Message) Key {
	k := Key{Kind: msg.Kind()}
	if b, ok := msg.(*protocol.BundleResponse); ok {
		k.Bundle = b.BundleID
	}
	return k
}

// Handler processes one dispatched message.
type Handler func(ctx context.Context, msg protocol.Message) error

// Dispatcher correlates decoded messages to one-shot awaiters and
// persistent subscriptions.
//
// Thread Safety: All methods are safe for concurrent use. Handlers may
// register or cancel subscriptions.
type Dispatcher struct {
	mu         sync.Mutex
	nextID     uint64
	oneShots   map[Key]map[uint64]Handler
	persistent map[Key]map[uint64]Handler
}

// New creates an empty dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		oneShots:   make(map[Key]map[uint64]Handler),
		persistent: make(map[Key]map[uint64]Handler),
	}
}

// Once registers a handler for the next message matching key. The handler
// runs at most once, even when matching messages are dispatched
// concurrently.
//
// Returns:
//   - func(): Removes the handler if it has not fired yet
func (d *Dispatcher) Once(key Key, h Handler) func() {
	return d.add(d.oneShots, key, h)
}

// Subscribe registers a handler for every message matching key.
//
// Returns:
//   - func(): Removes the subscription
func (d *Dispatcher) Subscribe(key Key, h Handler) func() {
	return d.add(d.persistent, key, h)
}

func (d *Dispatcher) add(set map[Key]map[uint64]Handler, key Key, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	if set[key] == nil {
		set[key] = make(map[uint64]Handler)
	}
	set[key][id] = h

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if hs := set[key]; hs != nil {
			delete(hs, id)
			if len(hs) == 0 {
				delete(set, key)
			}
		}
	}
}

// Len returns the number of registered one-shot and persistent handlers.
func (d *Dispatcher) Len() (oneShots, persistent int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, hs := range d.oneShots {
		oneShots += len(hs)
	}
	for _, hs := range d.persistent {
		persistent += len(hs)
	}
	return oneShots, persistent
}

// Dispatch delivers msg to every matching handler.
//
// Matching one-shot handlers are removed and run first, and Dispatch
// waits for them. The persistent handlers matching after that run
// concurrently. Dispatch returns once every invoked handler has returned.
// A one-shot error is returned without running the persistent handlers.
//
// Returns:
//   - bool: Whether any handler matched
//   - error: The first handler error
func (d *Dispatcher) Dispatch(ctx context.Context, msg protocol.Message) (bool, error) {
	key := KeyOf(msg)

	d.mu.Lock()
	once := collect(d.oneShots[key])
	delete(d.oneShots, key)
	d.mu.Unlock()

	if err := runAll(ctx, msg, once); err != nil {
		return true, err
	}

	d.mu.Lock()
	persistent := collect(d.persistent[key])
	d.mu.Unlock()

	if err := runAll(ctx, msg, persistent); err != nil {
		return true, err
	}
	return len(once)+len(persistent) > 0, nil
}

// collect copies a handler set. Callers hold d.mu.
func collect(hs map[uint64]Handler) []Handler {
	out := make([]Handler, 0, len(hs))
	for _, h := range hs {
		out = append(out, h)
	}
	return out
}

// runAll runs handlers concurrently and waits for all of them.
func runAll(ctx context.Context, msg protocol.Message, handlers []Handler) error {
	if len(handlers) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		g.Go(func() error {
			return h(gctx, msg)
		})
	}
	return g.Wait()
}
