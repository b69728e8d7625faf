package activity

import (
	"sort"
	"strings"
	"time"
)

const (
	// VerbActionDispatched is emitted after an action payload was delivered.
	VerbActionDispatched = "store.action.dispatched"
	// VerbStateChanged is emitted after every state write.
	VerbStateChanged = "store.state.changed"

	objectTypeStore  = "store"
	objectTypeAction = "store.action"
)

// StoreEventInput describes the common fields of store lifecycle events.
type StoreEventInput struct {
	StoreID    string
	StoreName  string
	Action     string
	Handler    string
	Args       int
	Keys       []string
	Err        error
	ActorID    string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildActionDispatchedEvent records one action going through the dispatcher.
func BuildActionDispatchedEvent(input StoreEventInput) Event {
	event := buildStoreEvent(VerbActionDispatched, objectTypeAction, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["args"] = input.Args
	if input.Err != nil {
		event.Metadata["error"] = input.Err.Error()
	}
	return event
}

// BuildStateChangedEvent records one state write. Keys lists the top-level
// keys the write touched.
func BuildStateChangedEvent(input StoreEventInput) Event {
	event := buildStoreEvent(VerbStateChanged, objectTypeStore, input)
	if len(input.Keys) > 0 {
		keys := append([]string{}, input.Keys...)
		sort.Strings(keys)
		event.Metadata = ensureMetadata(event.Metadata)
		event.Metadata["keys"] = keys
	}
	return event
}

func buildStoreEvent(verb, objectType string, input StoreEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if name := strings.TrimSpace(input.StoreName); name != "" {
		metadata = ensureMetadata(metadata)
		metadata["store_name"] = name
	}
	if input.Action != "" {
		metadata = ensureMetadata(metadata)
		metadata["action"] = input.Action
	}
	if input.Handler != "" {
		metadata = ensureMetadata(metadata)
		metadata["handler"] = input.Handler
	}

	objectID := strings.TrimSpace(input.StoreID)
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
