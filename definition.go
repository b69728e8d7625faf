package store

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Definition describes a store: the handler table its actions are derived
// from. Both plain values (Spec) and user types satisfy it.
type Definition interface {
	Handlers() Handlers
}

// Initializer is implemented by definitions that provide the first state
// value. Definitions without it start from an empty mapping.
type Initializer interface {
	InitialState() (any, error)
}

// InstanceInitializer is implemented by definitions whose first state
// depends on the bound instance. It takes precedence over Initializer.
type InstanceInitializer interface {
	InitialStateFor(inst *Instance) (any, error)
}

// Binder is implemented by definitions that keep per-instance resources.
// Bind runs once for every store built from the definition, before the
// store's first read.
type Binder interface {
	Bind(inst *Instance) error
}

// Spec is the plain-value Definition.
type Spec struct {
	// Init returns the initial state. Nil means an empty mapping.
	Init func() (any, error)
	// On maps handler names (OnIncrement) to handlers.
	On Handlers
}

// Handlers implements Definition.
func (s Spec) Handlers() Handlers {
	return s.On
}

// InitialState implements Initializer.
func (s Spec) InitialState() (any, error) {
	if s.Init == nil {
		return map[string]any{}, nil
	}
	return s.Init()
}

// ActionName derives the public action name from a handler name:
// OnIncrement and onIncrement both become increment. It reports false when
// the name does not follow the On/on + uppercase convention.
func ActionName(handler string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(handler, "On"):
		rest = strings.TrimPrefix(handler, "On")
	case strings.HasPrefix(handler, "on"):
		rest = strings.TrimPrefix(handler, "on")
	default:
		return "", false
	}
	first, size := utf8.DecodeRuneInString(rest)
	if first == utf8.RuneError || !unicode.IsUpper(first) {
		return "", false
	}
	return string(unicode.ToLower(first)) + rest[size:], true
}

func initializerFor(def Definition, inst *Instance) func() (any, error) {
	if init, ok := def.(InstanceInitializer); ok {
		return func() (any, error) {
			return init.InitialStateFor(inst)
		}
	}
	init, ok := def.(Initializer)
	if !ok {
		return nil
	}
	return init.InitialState
}

func checkDefinition(def Definition) error {
	if def == nil {
		return fmt.Errorf("%w: definition is nil", ErrInvalidDefinition)
	}
	return nil
}
