package store

import (
	"context"
	"fmt"
	"sort"
)

// actionTable is the validated handler table of one definition.
type actionTable struct {
	handlers map[string]HandlerFunc // by handler name
	byAction map[string]string      // action name -> handler name
}

func buildActionTable(handlers Handlers) (actionTable, error) {
	table := actionTable{
		handlers: make(map[string]HandlerFunc, len(handlers)),
		byAction: make(map[string]string, len(handlers)),
	}
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, handler := range names {
		fn := handlers[handler]
		if fn == nil {
			return actionTable{}, fmt.Errorf("%w: handler %q is nil", ErrInvalidDefinition, handler)
		}
		action, ok := ActionName(handler)
		if !ok {
			return actionTable{}, fmt.Errorf("%w: handler %q must be named On<Action> or on<Action>", ErrInvalidDefinition, handler)
		}
		if other, exists := table.byAction[action]; exists {
			return actionTable{}, fmt.Errorf("%w: handlers %q and %q both derive action %q", ErrInvalidDefinition, other, handler, action)
		}
		table.handlers[handler] = fn
		table.byAction[action] = handler
	}
	return table, nil
}

// actions derives one callable per handler. Every call goes through send.
func (t actionTable) actions(send func(ctx context.Context, method string, args []any) error) map[string]Action {
	actions := make(map[string]Action, len(t.byAction))
	for action, handler := range t.byAction {
		method := handler
		actions[action] = func(args ...any) error {
			return send(context.Background(), method, args)
		}
	}
	return actions
}

func (t actionTable) names() []string {
	names := make([]string, 0, len(t.byAction))
	for action := range t.byAction {
		names = append(names, action)
	}
	sort.Strings(names)
	return names
}
