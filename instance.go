package store

import (
	"sync"

	"github.com/goliatone/go-store/pkg/snapshot"
	"github.com/goliatone/go-store/pkg/state"
)

// Instance is the backing object of one store. Handlers receive it to reach
// their own store's state; it is never returned by the public API.
type Instance struct {
	id        ID
	name      string
	container *state.Container

	mu     sync.RWMutex
	mirror State
}

// ID returns the owning store's id.
func (i *Instance) ID() ID {
	return i.id
}

// Name returns the owning store's name, if any.
func (i *Instance) Name() string {
	return i.name
}

// Read returns a fresh snapshot of the authoritative state.
func (i *Instance) Read() (State, error) {
	return i.container.Read()
}

// Write shallow-merges partial into the state and notifies listeners.
func (i *Instance) Write(partial any) error {
	return i.container.Write(partial)
}

// State returns a copy of the instance mirror, which is refreshed after
// every write. Changing it reaches neither the store nor the mirror.
func (i *Instance) State() State {
	i.mu.RLock()
	mirror := i.mirror
	i.mu.RUnlock()
	if mirror == nil {
		return nil
	}
	out, err := snapshot.Object(mirror)
	if err != nil {
		return nil
	}
	return out
}

func (i *Instance) setMirror(mirror State) {
	i.mu.Lock()
	i.mirror = mirror
	i.mu.Unlock()
}
