package activity

import (
	"context"
	"strings"
)

type actorKey struct{}

type actor struct {
	id     string
	tenant string
}

// WithActor attaches the acting user and tenant to ctx. Store events built
// while handling a call made with ctx carry them.
func WithActor(ctx context.Context, actorID, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor{
		id:     strings.TrimSpace(actorID),
		tenant: strings.TrimSpace(tenantID),
	})
}

// ActorFromContext returns the actor and tenant stored by WithActor.
func ActorFromContext(ctx context.Context) (actorID, tenantID string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.id, value.tenant
}
