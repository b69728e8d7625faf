package eventbus

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestDispatchFansOutInRegistrationOrder(t *testing.T) {
	bus := New[string]()
	var seen []string
	for _, name := range []string{"a", "b", "c"} {
		if _, err := bus.Register(func(_ context.Context, payload string) error {
			seen = append(seen, name+":"+payload)
			return nil
		}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	if err := bus.Dispatch(context.Background(), "x"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !reflect.DeepEqual([]string{"a:x", "b:x", "c:x"}, seen) {
		t.Fatalf("unexpected delivery %v", seen)
	}
}

func TestDispatchIsolatesFailingReceivers(t *testing.T) {
	bus := New[int]()
	boom := errors.New("boom")
	delivered := 0

	bus.Register(func(context.Context, int) error { return boom })
	bus.Register(func(context.Context, int) error { panic("kaboom") })
	bus.Register(func(context.Context, int) error {
		delivered++
		return nil
	})

	err := bus.Dispatch(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to include boom, got %v", err)
	}
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError in %v", err)
	}
	if panicErr.Value != "kaboom" {
		t.Fatalf("unexpected panic value %v", panicErr.Value)
	}
	if delivered != 1 {
		t.Fatalf("later receiver should still run, ran %d times", delivered)
	}
}

func TestPanicErrorUnwrapsErrorValues(t *testing.T) {
	bus := New[int]()
	sentinel := errors.New("sentinel")
	bus.Register(func(context.Context, int) error { panic(sentinel) })

	if err := bus.Dispatch(context.Background(), 0); !errors.Is(err, sentinel) {
		t.Fatalf("expected panic error value to unwrap, got %v", err)
	}
}

func TestNestedDispatchCompletesFirst(t *testing.T) {
	bus := New[int]()
	var order []int
	bus.Register(func(ctx context.Context, n int) error {
		order = append(order, n)
		if n == 1 {
			return bus.Dispatch(ctx, 2)
		}
		return nil
	})
	bus.Register(func(_ context.Context, n int) error {
		order = append(order, n*10)
		return nil
	})

	if err := bus.Dispatch(context.Background(), 1); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !reflect.DeepEqual([]int{1, 2, 20, 10}, order) {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRegisterRejectsNilAndUnregisterRemoves(t *testing.T) {
	bus := New[int]()
	if _, err := bus.Register(nil); err == nil {
		t.Fatalf("expected error for nil receiver")
	}
	id, err := bus.Register(func(context.Context, int) error { return nil })
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !bus.Unregister(id) {
		t.Fatalf("expected unregister to succeed")
	}
	if bus.Unregister(id) {
		t.Fatalf("second unregister must be a no-op")
	}
	if bus.Len() != 0 {
		t.Fatalf("expected empty bus, got %d", bus.Len())
	}
}
