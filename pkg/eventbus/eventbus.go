// Package eventbus delivers every dispatched payload to every registered
// receiver, synchronously and in registration order.
//
// Receivers are isolated from each other: an error or panic in one receiver
// is collected and the remaining receivers are still offered the payload.
// Dispatch returns the joined failures once every receiver has run. Nested
// dispatches issued from inside a receiver complete before the outer one
// resumes.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Receiver consumes one payload.
type Receiver[P any] func(ctx context.Context, payload P) error

// ReceiverID identifies one registration returned by Register.
type ReceiverID uint64

// PanicError carries a value recovered from a panicking receiver.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("eventbus: receiver panicked: %v", e.Value)
}

// Unwrap exposes the recovered value when it is an error.
func (e *PanicError) Unwrap() error {
	if e == nil {
		return nil
	}
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type entry[P any] struct {
	id ReceiverID
	fn Receiver[P]
}

// Bus is a synchronous broadcast channel for payloads of type P.
type Bus[P any] struct {
	mu        sync.Mutex
	next      ReceiverID
	receivers []entry[P]
}

// New constructs an empty bus.
func New[P any]() *Bus[P] {
	return &Bus[P]{}
}

// Register appends fn to the receiver list.
func (b *Bus[P]) Register(fn Receiver[P]) (ReceiverID, error) {
	if fn == nil {
		return 0, fmt.Errorf("eventbus: receiver is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.receivers = append(b.receivers, entry[P]{id: b.next, fn: fn})
	return b.next, nil
}

// Unregister removes the receiver identified by id.
func (b *Bus[P]) Unregister(id ReceiverID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.receivers {
		if e.id != id {
			continue
		}
		updated := make([]entry[P], 0, len(b.receivers)-1)
		updated = append(updated, b.receivers[:i]...)
		b.receivers = append(updated, b.receivers[i+1:]...)
		return true
	}
	return false
}

// Len returns the number of registered receivers.
func (b *Bus[P]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

// Dispatch offers payload to every receiver registered when the call starts.
func (b *Bus[P]) Dispatch(ctx context.Context, payload P) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	receivers := b.receivers
	b.mu.Unlock()

	var errs []error
	for _, e := range receivers {
		if err := deliver(ctx, e.fn, payload); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func deliver[P any](ctx context.Context, fn Receiver[P], payload P) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, payload)
}
