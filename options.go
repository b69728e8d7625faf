package store

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-store/pkg/activity"
)

// Option configures a store built by New.
type Option func(*storeConfig)

type storeConfig struct {
	name           string
	logger         Logger
	evaluator      Evaluator
	engine         string
	programCache   ProgramCache
	functions      *FunctionRegistry
	activityHooks  activity.Hooks
	activityConfig activity.Config
	activitySet    bool
	optionErrs     []error
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithName labels the store in logs, activity events and selector contexts.
func WithName(name string) Option {
	return func(cfg *storeConfig) {
		cfg.name = strings.TrimSpace(name)
	}
}

// WithLogger attaches a logger to the store. When unset the store inherits
// the Dispatcher's logger.
func WithLogger(logger Logger) Option {
	return func(cfg *storeConfig) {
		cfg.logger = logger
	}
}

// WithEvaluator configures the selector evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *storeConfig) {
		cfg.evaluator = e
	}
}

// WithEngine selects a built-in selector engine: EngineExpr, EngineCEL or
// EngineJS. The engine shares the store's program cache and functions.
func WithEngine(engine string) Option {
	return func(cfg *storeConfig) {
		engine = strings.ToLower(strings.TrimSpace(engine))
		switch engine {
		case "", EngineExpr, EngineCEL, EngineJS:
			cfg.engine = engine
		default:
			cfg.optionErrs = append(cfg.optionErrs, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, engine))
		}
	}
}

// WithProgramCache shares compiled selector programs across evaluations.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *storeConfig) {
		cfg.programCache = cache
	}
}

// WithActivityHooks attaches activity hooks. Hooks are cloned and nil entries
// dropped. Emission is enabled unless WithActivityConfig says otherwise.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *storeConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides activity emission settings.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *storeConfig) {
		cfg.activityConfig = config
		cfg.activitySet = true
	}
}

func (cfg storeConfig) emitter() *activity.Emitter {
	config := cfg.activityConfig
	if !cfg.activitySet {
		config.Enabled = true
	}
	return activity.NewEmitter(cfg.activityHooks, config)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the logger used for dispatch events and inherited
// by stores that do not set their own.
func WithDispatchLogger(logger Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = loggerOrNoop(logger)
	}
}

// WithActivityEmitter sets the emitter used by stores that configure no
// activity hooks of their own.
func WithActivityEmitter(emitter *activity.Emitter) DispatcherOption {
	return func(d *Dispatcher) {
		d.activity = emitter
	}
}
