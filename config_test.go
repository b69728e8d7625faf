package store_test

import (
	"reflect"
	"testing"

	store "github.com/goliatone/go-store"
	"github.com/goliatone/go-store/pkg/activity"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := store.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := store.Config{
		Evaluator:    "expr",
		ProgramCache: true,
		Activity:     activity.Config{Enabled: true},
	}
	if !reflect.DeepEqual(want, cfg) {
		t.Fatalf("unexpected defaults\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("STORE_NAME", "cart")
	t.Setenv("STORE_EVALUATOR", "cel")
	t.Setenv("STORE_PROGRAM_CACHE", "false")
	t.Setenv("STORE_ACTIVITY_ENABLED", "false")
	t.Setenv("STORE_ACTIVITY_CHANNEL", "audit")

	cfg, err := store.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := store.Config{
		Name:      "cart",
		Evaluator: "cel",
		Activity:  activity.Config{Enabled: false, Channel: "audit"},
	}
	if !reflect.DeepEqual(want, cfg) {
		t.Fatalf("unexpected config\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("STORE_PROGRAM_CACHE", "maybe")
	if _, err := store.LoadConfig(); err == nil {
		t.Fatalf("expected malformed bool to fail")
	}
}

func TestConfigOptionsBuildStore(t *testing.T) {
	t.Setenv("STORE_NAME", "cart")
	t.Setenv("STORE_EVALUATOR", "js")
	t.Setenv("STORE_ACTIVITY_CHANNEL", "audit")

	cfg, err := store.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	capture := &activity.CaptureHook{}
	opts := append(cfg.Options(), store.WithActivityHooks(activity.Hooks{capture}))
	s := mustStore(t, store.NewDispatcher(), counterSpec(), opts...)

	if s.Name() != "cart" {
		t.Fatalf("expected configured name, got %q", s.Name())
	}
	got, err := s.Select(`typeof count === "number" && store.name === "cart"`)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != true {
		t.Fatalf("expected js engine selector to pass, got %#v", got)
	}

	if err := s.Call("increment", 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if len(capture.Events) == 0 || capture.Events[0].Channel != "audit" {
		t.Fatalf("expected events on configured channel, got %+v", capture.Events)
	}
}
