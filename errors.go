package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-store/pkg/snapshot"
	"github.com/goliatone/go-store/pkg/state"
)

var (
	// ErrInvalidStateShape is returned when an initializer result or a
	// written value is not a keyed mapping.
	ErrInvalidStateShape = state.ErrInvalidShape
	// ErrUnrepresentableValue is returned when a state value holds content
	// that cannot be copied (functions, channels, cycles, NaN, ...).
	ErrUnrepresentableValue = snapshot.ErrUnrepresentable

	ErrInvalidDefinition = errors.New("store: invalid definition")
	ErrUnknownAction     = errors.New("store: unknown action")
	ErrNilDispatcher     = errors.New("store: dispatcher is required")
	ErrNilListener       = errors.New("store: listener is required")
	ErrNoEvaluator       = errors.New("store: evaluator not configured")
)

// HandlerError captures the store and handler behind a failed action.
type HandlerError struct {
	StoreID ID
	Store   string
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: handler %s %s: %v", e.Handler, describeStore(e.StoreID, e.Store), e.Err)
}

func (e *HandlerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Store  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("store: %s evaluator %s store=%s: %v", e.Engine, describeExpression(e.Expr), e.Store, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeStore(id ID, name string) string {
	if name == "" {
		return "store=" + id.String()
	}
	return fmt.Sprintf("store=%s(%s)", name, id)
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "store:") {
		return err
	}
	return fmt.Errorf("store: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, label string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Store == "" {
			evalErr.Store = label
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Store:  label,
		Err:    err,
	}
}
