package activity

import (
	"context"
	"testing"
)

func TestActorRoundTripsThroughContext(t *testing.T) {
	ctx := WithActor(context.Background(), " user-1 ", "tenant-1")
	actorID, tenantID := ActorFromContext(ctx)
	if actorID != "user-1" || tenantID != "tenant-1" {
		t.Fatalf("unexpected actor %q tenant %q", actorID, tenantID)
	}
}

func TestActorMissingFromContext(t *testing.T) {
	actorID, tenantID := ActorFromContext(context.Background())
	if actorID != "" || tenantID != "" {
		t.Fatalf("expected empty actor, got %q %q", actorID, tenantID)
	}
}
