package store

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
	"github.com/goliatone/go-store/pkg/eventbus"
	"github.com/goliatone/go-store/pkg/state"
	"github.com/google/uuid"
)

// Store is the public surface of one store: its actions and its state
// entry points. The backing Instance stays private.
type Store struct {
	id         ID
	name       string
	dispatcher *Dispatcher
	instance   *Instance
	container  *state.Container
	listeners  *listenerRegistry
	table      actionTable
	actions    map[string]Action
	logger     Logger
	activity   *activity.Emitter

	// context of the call currently running a handler of this store
	active atomic.Pointer[context.Context]

	evaluator    Evaluator
	engine       string
	programCache ProgramCache
	functions    *FunctionRegistry
	evalOnce     sync.Once
}

// New builds a store from def and registers it on d. Every call yields an
// independent store with a fresh id, even for the same definition.
//
// The initializer runs once while New seeds the instance mirror, so an
// initializer failure or a non-object initial state is returned here.
func New(d *Dispatcher, def Definition, opts ...Option) (*Store, error) {
	if d == nil {
		return nil, ErrNilDispatcher
	}
	if err := checkDefinition(def); err != nil {
		return nil, err
	}
	cfg := applyOptions(opts)
	if err := errors.Join(cfg.optionErrs...); err != nil {
		return nil, err
	}
	table, err := buildActionTable(def.Handlers())
	if err != nil {
		return nil, err
	}

	s := &Store{
		id:           uuid.New(),
		name:         cfg.name,
		dispatcher:   d,
		table:        table,
		logger:       cfg.logger,
		activity:     d.activity,
		evaluator:    cfg.evaluator,
		engine:       cfg.engine,
		programCache: cfg.programCache,
		functions:    cfg.functions,
	}
	if s.logger == nil {
		s.logger = d.logger
	}
	s.logger = loggerOrNoop(s.logger)
	switch {
	case len(cfg.activityHooks) > 0:
		s.activity = cfg.emitter()
	case cfg.activitySet && !cfg.activityConfig.Enabled:
		s.activity = nil
	}

	s.instance = &Instance{id: s.id, name: s.name}
	s.container = state.New(
		state.WithInitializer(initializerFor(def, s.instance)),
		state.WithMirrorHook(s.instance.setMirror),
		state.WithChangeHook(s.changed),
	)
	s.instance.container = s.container
	s.listeners = &listenerRegistry{
		id:     s.id,
		topics: d.topics,
		read:   s.container.Read,
		failed: s.logFailure,
	}

	if binder, ok := def.(Binder); ok {
		if err := binder.Bind(s.instance); err != nil {
			return nil, fmt.Errorf("store: bind definition: %w", err)
		}
	}
	seed, err := s.container.Read()
	if err != nil {
		return nil, err
	}
	s.instance.setMirror(seed)

	s.actions = table.actions(s.send)
	if _, err := d.register(s.receive); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the store id.
func (s *Store) ID() ID {
	return s.id
}

// Name returns the name set with WithName.
func (s *Store) Name() string {
	return s.name
}

// Actions returns the store's actions keyed by action name.
func (s *Store) Actions() map[string]Action {
	out := make(map[string]Action, len(s.actions))
	for name, action := range s.actions {
		out[name] = action
	}
	return out
}

// ActionNames returns the action names sorted alphabetically.
func (s *Store) ActionNames() []string {
	return s.table.names()
}

// Action returns the named action.
func (s *Store) Action(name string) (Action, bool) {
	action, ok := s.actions[name]
	return action, ok
}

// Call invokes the named action.
func (s *Store) Call(name string, args ...any) error {
	return s.CallContext(context.Background(), name, args...)
}

// CallContext invokes the named action with ctx. The context reaches
// activity hooks; handlers run synchronously either way.
func (s *Store) CallContext(ctx context.Context, name string, args ...any) error {
	handler, ok := s.table.byAction[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return s.send(ctx, handler, args)
}

// GetState returns a snapshot of the current state.
func (s *Store) GetState() (State, error) {
	return s.container.Read()
}

// Subscribe calls listener once with the current state and again after
// every change. The returned function detaches it and is safe to call more
// than once.
func (s *Store) Subscribe(listener Listener) (Unsubscribe, error) {
	return s.listeners.subscribe(listener)
}

// Listeners returns the number of attached listeners.
func (s *Store) Listeners() int {
	return s.listeners.count()
}

func (s *Store) send(ctx context.Context, method string, args []any) error {
	return s.dispatcher.send(ctx, s.id, method, args)
}

// receive is the store's receiver on the dispatcher bus. Payloads for other
// stores are ignored.
func (s *Store) receive(ctx context.Context, payload Payload) error {
	if payload.StoreID != s.id {
		return nil
	}

	var err error
	if handler, ok := s.table.handlers[payload.Method]; ok {
		err = s.invoke(ctx, handler, payload.Args)
	} else {
		err = fmt.Errorf("%w: %q", ErrUnknownAction, payload.Method)
	}

	action, _ := ActionName(payload.Method)
	s.emit(ctx, "action", activity.BuildActionDispatchedEvent(s.eventInput(ctx, activity.StoreEventInput{
		Action:  action,
		Handler: payload.Method,
		Args:    len(payload.Args),
		Err:     err,
	})))

	if err != nil {
		return &HandlerError{StoreID: s.id, Store: s.name, Handler: payload.Method, Err: err}
	}
	return nil
}

func (s *Store) invoke(ctx context.Context, handler HandlerFunc, args []any) (err error) {
	previous := s.active.Swap(&ctx)
	defer s.active.Store(previous)
	defer func() {
		if r := recover(); r != nil {
			err = &eventbus.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return handler(s.instance, args...)
}

// changed runs after every successful write.
func (s *Store) changed(keys []string) {
	s.listeners.notify()

	ctx := context.Background()
	if active := s.active.Load(); active != nil {
		ctx = *active
	}
	s.emit(ctx, "state", activity.BuildStateChangedEvent(s.eventInput(ctx, activity.StoreEventInput{
		Keys: keys,
	})))
}

func (s *Store) eventInput(ctx context.Context, input activity.StoreEventInput) activity.StoreEventInput {
	input.StoreID = s.id.String()
	input.StoreName = s.name
	input.ActorID, input.TenantID = activity.ActorFromContext(ctx)
	input.OccurredAt = time.Now()
	return input
}

func (s *Store) emit(ctx context.Context, op string, event activity.Event) {
	if !s.activity.Enabled() {
		return
	}
	if err := s.activity.Emit(ctx, event); err != nil {
		s.logFailure("activity."+op, err)
	}
}

func (s *Store) logFailure(op string, err error) {
	s.logger.LogError(ErrorLogEvent{StoreID: s.id, Store: s.name, Op: op, Err: err})
}
