package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-store/pkg/activity"
	"github.com/goliatone/go-store/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsStoreEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()
	storeID := uuid.New().String()

	event := activity.BuildStateChangedEvent(activity.StoreEventInput{
		StoreID:    storeID,
		StoreName:  "counter",
		Keys:       []string{"count"},
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		Channel:    "store",
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.Verb != activity.VerbStateChanged || record.ObjectType != "store" || record.ObjectID != storeID {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "store" {
		t.Fatalf("expected channel store got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["store_name"] != "counter" {
		t.Fatalf("expected metadata passthrough got %v", record.Data)
	}
	keys, ok := record.Data["keys"].([]string)
	if !ok || len(keys) != 1 || keys[0] != "count" {
		t.Fatalf("expected keys metadata got %v", record.Data["keys"])
	}
}

func TestHookNotifyInvalidIdentitiesBecomeNil(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbActionDispatched,
		ActorID:    "not-a-uuid",
		ObjectType: "store.action",
		ObjectID:   "1",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected nil uuid for invalid actor, got %s", sink.records[0].ActorID)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsIncompleteEventsAndNilSink(t *testing.T) {
	sink := &recordingSink{}
	if err := (usersink.Hook{Sink: sink}).Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: "v", ObjectType: "t", ObjectID: "1"}); err != nil {
		t.Fatalf("nil sink should be a no-op, got %v", err)
	}
}

func TestHookNotifyReturnsSinkError(t *testing.T) {
	boom := errors.New("sink down")
	hook := usersink.Hook{Sink: &recordingSink{err: boom}}
	err := hook.Notify(context.Background(), activity.Event{Verb: "v", ObjectType: "t", ObjectID: "1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
