package store

import (
	"time"

	"github.com/google/uuid"
)

// ID identifies one store for the lifetime of the process.
type ID = uuid.UUID

// State is a JSON-shaped keyed mapping. Every State handed out by a store is
// a private deep copy owned by the receiver.
type State = map[string]any

// Payload is the message routed by the Dispatcher for one action call.
type Payload struct {
	StoreID ID
	Method  string
	Args    []any
}

// HandlerFunc performs the state mutation requested by an action. It runs
// only when the Dispatcher delivers a matching payload, and reaches the
// store's state through inst.
type HandlerFunc func(inst *Instance, args ...any) error

// Handlers maps handler names (OnIncrement, onIncrement) to their functions.
type Handlers map[string]HandlerFunc

// Action is the public callable derived from a handler. It forwards its
// arguments through the Dispatcher and returns the handler's failure, if any.
type Action func(args ...any) error

// Listener receives a state snapshot on subscription and after every change.
type Listener func(State)

// Unsubscribe detaches a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// RuleContext carries inputs needed when evaluating a selector expression.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	StoreID  string
	Store    string
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) label() string {
	if ctx.Store != "" {
		return ctx.Store
	}
	if ctx.StoreID != "" {
		return ctx.StoreID
	}
	return "unknown"
}

func (ctx RuleContext) storeBinding() map[string]any {
	if ctx.StoreID == "" && ctx.Store == "" {
		return nil
	}
	return map[string]any{
		"id":   ctx.StoreID,
		"name": ctx.Store,
	}
}

// Evaluator executes selector expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

func snapshotAsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
