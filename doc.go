// Package store turns a store definition into an isolated piece of state
// with a public set of actions and change subscriptions.
//
// A definition lists handlers named On<Action> (Go) or on<Action>
// (JavaScript through FromJS). New derives one Action per handler. Calling
// an action never runs the handler in place: the call becomes a Payload on
// the Dispatcher, every store registered on it is offered the payload and
// only the owning store runs the handler.
//
//	d := store.NewDispatcher()
//	counter, _ := store.New(d, store.Spec{
//		Init: func() (any, error) { return map[string]any{"count": 0}, nil },
//		On: store.Handlers{
//			"OnIncrement": func(inst *store.Instance, args ...any) error {
//				current, err := inst.Read()
//				if err != nil {
//					return err
//				}
//				return inst.Write(map[string]any{"count": current["count"].(int) + args[0].(int)})
//			},
//		},
//	})
//	unsubscribe, _ := counter.Subscribe(func(s store.State) { fmt.Println(s["count"]) })
//	_ = counter.Call("increment", 5)
//	unsubscribe()
//
// State is always a JSON-shaped keyed mapping. Every value crossing the
// store boundary is deep copied (see pkg/snapshot); content that cannot be
// copied fails with ErrUnrepresentableValue rather than being dropped.
// Writes shallow-merge top-level keys and notify every listener once, even
// when nothing changed.
//
// Everything runs synchronously on the caller's goroutine. Listeners and
// handlers may call actions again; nested calls finish before the outer one
// resumes. Concurrent callers must serialize externally.
package store
