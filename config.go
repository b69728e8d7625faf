package store

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-store/pkg/activity"
)

// Config holds the environment-driven store settings:
//
//	STORE_NAME               store label
//	STORE_EVALUATOR          selector engine: expr (default), cel or js
//	STORE_PROGRAM_CACHE      share compiled selectors (default true)
//	STORE_ACTIVITY_ENABLED   emit activity events when hooks exist (default true)
//	STORE_ACTIVITY_CHANNEL   channel stamped on activity events
type Config struct {
	Name         string          `env:"NAME"`
	Evaluator    string          `env:"EVALUATOR" envDefault:"expr"`
	ProgramCache bool            `env:"PROGRAM_CACHE" envDefault:"true"`
	Activity     activity.Config `envPrefix:"ACTIVITY_"`
}

// LoadConfig parses Config from STORE_-prefixed environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STORE_"}); err != nil {
		return Config{}, fmt.Errorf("store: parse env: %w", err)
	}
	return cfg, nil
}

// Options turns the configuration into store options. Hooks are not part of
// the environment; pass WithActivityHooks alongside.
func (c Config) Options() []Option {
	opts := []Option{
		WithEngine(c.Evaluator),
		WithActivityConfig(c.Activity),
	}
	if c.Name != "" {
		opts = append(opts, WithName(c.Name))
	}
	if c.ProgramCache {
		opts = append(opts, WithProgramCache(NewMemoryProgramCache()))
	}
	return opts
}
