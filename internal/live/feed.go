// Package live provides a small publish/subscribe primitive for snapshot streams:
// every publish replaces the latest value, and new subscribers are replayed it.
package live

import "sync"

// Feed fans snapshots of T out to subscribers. The zero value is ready to use.
//
// Deliveries are serialised, so a subscriber never observes snapshots out of
// order. A subscriber callback must not publish to or refresh the feed that
// invoked it.
type Feed[T any] struct {
	deliver sync.Mutex // held while callbacks run

	mu     sync.Mutex
	latest T
	has    bool
	next   uint64
	subs   map[uint64]func(T)
}

// Publish stores v as the latest snapshot and delivers it to every subscriber.
func (f *Feed[T]) Publish(v T) {
	f.deliver.Lock()
	defer f.deliver.Unlock()
	f.deliverLocked(v)
}

func (f *Feed[T]) deliverLocked(v T) {
	f.mu.Lock()
	f.latest, f.has = v, true
	fns := make([]func(T), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Refresh loads a new snapshot and publishes it, holding the delivery lock
// across both so concurrent refreshes publish in the order they loaded. It
// does nothing and reports false until a first snapshot exists.
func (f *Feed[T]) Refresh(load func() (T, error)) (bool, error) {
	f.deliver.Lock()
	defer f.deliver.Unlock()
	if _, ok := f.Latest(); !ok {
		return false, nil
	}
	return true, f.loadAndDeliver(load)
}

// Prime loads and publishes a first snapshot unless one already exists.
func (f *Feed[T]) Prime(load func() (T, error)) error {
	f.deliver.Lock()
	defer f.deliver.Unlock()
	if _, ok := f.Latest(); ok {
		return nil
	}
	return f.loadAndDeliver(load)
}

// loadAndDeliver requires deliver.
func (f *Feed[T]) loadAndDeliver(load func() (T, error)) error {
	v, err := load()
	if err != nil {
		return err
	}
	f.deliverLocked(v)
	return nil
}

// Subscribe registers fn and, if a snapshot exists, replays it immediately.
// The returned cancel func is idempotent.
func (f *Feed[T]) Subscribe(fn func(T)) (cancel func()) {
	f.deliver.Lock()
	defer f.deliver.Unlock()

	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[uint64]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	latest, has := f.latest, f.has
	f.mu.Unlock()

	if has {
		fn(latest)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Latest returns the most recent snapshot, if any.
func (f *Feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.has
}

// Subscribers reports how many callbacks are registered.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
