package store

import (
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-store/pkg/pubsub"
)

// listenerRegistry keeps one store's subscribers on the shared pub/sub,
// under the store id as topic.
//
// A notification pass walks the subscribers registered when the pass
// started. Every wrapper reads the state at its own turn, so a listener that
// writes makes later listeners of the same pass see the new value, and
// triggers a nested pass of its own.
type listenerRegistry struct {
	id     ID
	topics *pubsub.Emitter[ID]
	read   func() (State, error)
	failed func(op string, err error)
}

func (r *listenerRegistry) subscribe(callback Listener) (Unsubscribe, error) {
	if callback == nil {
		return nil, ErrNilListener
	}

	var active atomic.Bool
	active.Store(true)
	wrapper := func() {
		if !active.Load() {
			return
		}
		current, err := r.read()
		if err != nil {
			r.failed("notify", err)
			return
		}
		callback(current)
	}
	handle := r.topics.On(r.id, wrapper)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			active.Store(false)
			r.topics.Off(r.id, handle)
		})
	}

	current, err := r.read()
	if err != nil {
		unsubscribe()
		return nil, err
	}
	callback(current)
	return unsubscribe, nil
}

func (r *listenerRegistry) notify() {
	r.topics.Emit(r.id)
}

func (r *listenerRegistry) count() int {
	return r.topics.Count(r.id)
}
