package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "flag && missing", "counter", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "flag && missing" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Store != "counter" {
		t.Fatalf("expected store metadata, got %q", evalErr.Store)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := wrapEvaluationError("cel", "rule", "cart", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Store != "cart" {
		t.Fatalf("store should be filled, got %q", existing.Store)
	}
}

func TestWrapEvaluatorErrorKeepsPrefixedErrors(t *testing.T) {
	prefixed := errors.New("store: already described")
	if got := wrapEvaluatorError("js", prefixed); got != prefixed {
		t.Fatalf("expected prefixed error untouched, got %v", got)
	}
	wrapped := wrapEvaluatorError("js", errors.New("raw"))
	if !strings.HasPrefix(wrapped.Error(), "store: js evaluator:") {
		t.Fatalf("unexpected wrapping %q", wrapped.Error())
	}
	if wrapEvaluatorError("js", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestHandlerErrorDescribesStore(t *testing.T) {
	id := uuid.MustParse("6f1a3c2e-9d1b-4a53-8f0e-0c9d2b7e4a11")
	base := errors.New("boom")
	err := &HandlerError{StoreID: id, Store: "counter", Handler: "OnIncrement", Err: base}

	if !errors.Is(err, base) {
		t.Fatalf("expected handler error to unwrap")
	}
	want := "store: handler OnIncrement store=counter(6f1a3c2e-9d1b-4a53-8f0e-0c9d2b7e4a11): boom"
	if err.Error() != want {
		t.Fatalf("unexpected message\nwant: %s\n got: %s", want, err.Error())
	}
}
