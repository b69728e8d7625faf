package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-store/pkg/snapshot"
)

// ErrInvalidShape reports a state value that is not a keyed mapping.
var ErrInvalidShape = errors.New("state: state must be an object")

// Initializer produces the first state value of a container.
type Initializer func() (any, error)

// Option configures a Container.
type Option func(*Container)

// WithInitializer sets the lazy initializer. Nil keeps the empty default.
func WithInitializer(fn Initializer) Option {
	return func(c *Container) {
		c.init = fn
	}
}

// WithChangeHook registers the function signalled once per Write. It
// receives the sorted top-level keys carried by the partial value.
func WithChangeHook(fn func(keys []string)) Option {
	return func(c *Container) {
		c.onChange = fn
	}
}

// WithMirrorHook registers the function that receives a private copy of the
// state after every Write.
func WithMirrorHook(fn func(map[string]any)) Option {
	return func(c *Container) {
		c.onMirror = fn
	}
}

// Container holds one store's current state.
type Container struct {
	mu       sync.Mutex
	current  map[string]any
	writes   uint64
	init     Initializer
	onChange func(keys []string)
	onMirror func(map[string]any)
}

// New constructs an uninitialized container.
func New(opts ...Option) *Container {
	c := &Container{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Read returns a deep copy of the current state, initializing it first if
// needed.
func (c *Container) Read() (map[string]any, error) {
	current, err := c.ensure()
	if err != nil {
		return nil, err
	}
	return snapshot.Object(current)
}

// Write shallow-merges partial over the current state. Exactly one change
// signal is raised per successful call, even when nothing changed.
func (c *Container) Write(partial any) error {
	patch, err := snapshot.Object(partial)
	if err != nil {
		return shapeError("write", err)
	}
	if _, err := c.ensure(); err != nil {
		return err
	}

	c.mu.Lock()
	base, err := snapshot.Object(c.current)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("state: write: %w", err)
	}
	c.current = snapshot.Merge(base, patch)
	c.writes++
	current := c.current
	c.mu.Unlock()

	if c.onMirror != nil {
		mirror, err := snapshot.Object(current)
		if err != nil {
			return fmt.Errorf("state: mirror: %w", err)
		}
		c.onMirror(mirror)
	}
	if c.onChange != nil {
		c.onChange(sortedKeys(patch))
	}
	return nil
}

// Initialized reports whether the initializer already ran.
func (c *Container) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Writes returns the number of successful writes.
func (c *Container) Writes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *Container) ensure() (map[string]any, error) {
	c.mu.Lock()
	if c.current != nil {
		current := c.current
		c.mu.Unlock()
		return current, nil
	}
	c.mu.Unlock()

	seed, err := c.initial()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		c.current = seed
	}
	return c.current, nil
}

func (c *Container) initial() (map[string]any, error) {
	if c.init == nil {
		return map[string]any{}, nil
	}
	value, err := c.init()
	if err != nil {
		return nil, fmt.Errorf("state: initializer: %w", err)
	}
	seed, err := snapshot.Object(value)
	if err != nil {
		return nil, shapeError("initializer", err)
	}
	return seed, nil
}

func shapeError(op string, err error) error {
	if errors.Is(err, snapshot.ErrNotObject) {
		return fmt.Errorf("%w: %s: %v", ErrInvalidShape, op, err)
	}
	return fmt.Errorf("state: %s: %w", op, err)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
