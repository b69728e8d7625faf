package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
	"github.com/goliatone/go-store/pkg/eventbus"
	"github.com/goliatone/go-store/pkg/pubsub"
)

// Dispatcher is the single ordered channel every action goes through.
// Construct one per composition root and build every store on it; stores on
// different dispatchers never see each other's payloads.
//
// Dispatch is synchronous. A nested call issued by a handler or a listener
// completes before the outer call resumes.
type Dispatcher struct {
	bus      *eventbus.Bus[Payload]
	topics   *pubsub.Emitter[ID]
	logger   Logger
	activity *activity.Emitter
	depth    atomic.Int32
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		bus:    eventbus.New[Payload](),
		topics: pubsub.New[ID](),
		logger: noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Stores returns the number of stores registered on the Dispatcher.
func (d *Dispatcher) Stores() int {
	return d.bus.Len()
}

func (d *Dispatcher) register(receiver eventbus.Receiver[Payload]) (eventbus.ReceiverID, error) {
	return d.bus.Register(receiver)
}

// send offers a payload to every registered store and returns once all of
// them ran. Failures of the receivers are joined.
func (d *Dispatcher) send(ctx context.Context, id ID, method string, args []any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	payload := Payload{StoreID: id, Method: method, Args: args}

	depth := d.depth.Add(1)
	defer d.depth.Add(-1)

	start := time.Now()
	err := d.bus.Dispatch(ctx, payload)
	d.logger.LogDispatch(DispatchLogEvent{
		StoreID:  id,
		Method:   method,
		Args:     len(args),
		Depth:    int(depth),
		Duration: time.Since(start),
		Err:      err,
	})
	return err
}
