package state

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-store/pkg/snapshot"
)

func TestReadInitializesLazily(t *testing.T) {
	calls := 0
	c := New(WithInitializer(func() (any, error) {
		calls++
		return map[string]any{"count": 0}, nil
	}))

	if c.Initialized() {
		t.Fatalf("expected container to start uninitialized")
	}
	if calls != 0 {
		t.Fatalf("initializer should not run at construction")
	}

	first, err := c.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	second, err := c.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected initializer to run once, ran %d times", calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected equal reads, got %#v and %#v", first, second)
	}
	first["count"] = 999
	if second["count"] != 0 {
		t.Fatalf("reads must not share references")
	}
}

func TestReadDefaultsToEmptyMapping(t *testing.T) {
	got, err := New().Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty mapping, got %#v", got)
	}
}

func TestInitializerShapeIsValidated(t *testing.T) {
	for _, value := range []any{nil, 42, "state", []any{1}} {
		c := New(WithInitializer(func() (any, error) { return value, nil }))
		if _, err := c.Read(); !errors.Is(err, ErrInvalidShape) {
			t.Fatalf("initializer %#v: expected ErrInvalidShape, got %v", value, err)
		}
		if err := c.Write(map[string]any{"a": 1}); !errors.Is(err, ErrInvalidShape) {
			t.Fatalf("write after bad initializer %#v: expected ErrInvalidShape, got %v", value, err)
		}
	}
}

func TestInitializerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := New(WithInitializer(func() (any, error) { return nil, boom }))
	if _, err := c.Read(); !errors.Is(err, boom) {
		t.Fatalf("expected initializer error, got %v", err)
	}
}

func TestWriteShallowMerges(t *testing.T) {
	c := New(WithInitializer(func() (any, error) {
		return map[string]any{"a": 1, "b": 2}, nil
	}))
	if err := c.Write(map[string]any{"b": 3, "c": 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := c.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := map[string]any{"a": 1, "b": 3, "c": 4}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unexpected state\nwant: %#v\n got: %#v", want, got)
	}
}

func TestWriteCopiesPartialIn(t *testing.T) {
	c := New()
	partial := map[string]any{"list": []any{"a"}}
	if err := c.Write(partial); err != nil {
		t.Fatalf("write: %v", err)
	}
	partial["list"].([]any)[0] = "mutated"
	partial["extra"] = true

	got, _ := c.Read()
	if got["list"].([]any)[0] != "a" {
		t.Fatalf("caller mutation leaked into state: %#v", got)
	}
	if _, ok := got["extra"]; ok {
		t.Fatalf("caller key leaked into state: %#v", got)
	}
}

func TestWriteRejectsInvalidShapes(t *testing.T) {
	c := New()
	for _, value := range []any{nil, 1, "x", []any{}} {
		if err := c.Write(value); !errors.Is(err, ErrInvalidShape) {
			t.Fatalf("write %#v: expected ErrInvalidShape, got %v", value, err)
		}
	}
	if c.Writes() != 0 {
		t.Fatalf("rejected writes must not count, got %d", c.Writes())
	}
}

func TestWriteRejectsUnrepresentableContent(t *testing.T) {
	c := New()
	err := c.Write(map[string]any{"fn": func() {}})
	if !errors.Is(err, snapshot.ErrUnrepresentable) {
		t.Fatalf("expected ErrUnrepresentable, got %v", err)
	}
	if errors.Is(err, ErrInvalidShape) {
		t.Fatalf("unrepresentable content is not a shape error: %v", err)
	}
}

func TestWriteSignalsOncePerCallEvenWhenUnchanged(t *testing.T) {
	changes := 0
	var mirror map[string]any
	c := New(
		WithChangeHook(func(keys []string) {
			changes++
			if !reflect.DeepEqual([]string{"a"}, keys) {
				t.Fatalf("unexpected change keys %v", keys)
			}
		}),
		WithMirrorHook(func(m map[string]any) { mirror = m }),
	)

	if err := c.Write(map[string]any{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Write(map[string]any{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if changes != 2 {
		t.Fatalf("expected 2 change signals, got %d", changes)
	}
	if mirror["a"] != 1 {
		t.Fatalf("expected mirror refreshed, got %#v", mirror)
	}

	mirror["a"] = 42
	got, _ := c.Read()
	if got["a"] != 1 {
		t.Fatalf("mirror must not alias state, got %#v", got)
	}
}

func TestChangeHookMayReenter(t *testing.T) {
	var c *Container
	seen := []any{}
	c = New(WithChangeHook(func([]string) {
		state, err := c.Read()
		if err != nil {
			t.Fatalf("read inside hook: %v", err)
		}
		seen = append(seen, state["n"])
		if state["n"] == 1 {
			if err := c.Write(map[string]any{"n": 2}); err != nil {
				t.Fatalf("write inside hook: %v", err)
			}
		}
	}))

	if err := c.Write(map[string]any{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !reflect.DeepEqual([]any{1, 2}, seen) {
		t.Fatalf("unexpected re-entrant sequence %#v", seen)
	}
}
