package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Helpers named like a CEL builtin (int, double, size, ...) are not declared
// as functions; reach them with call("double", x).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// celEvaluator type-checks selectors against the snapshot's top-level keys,
// declared as dynamic variables.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	snapshot := snapshotAsMap(ctx.Snapshot)
	program, err := e.loadOrCompile(expression, snapshot)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.label(), err)
	}
	out, _, err := program.program.Eval(e.activation(ctx, snapshot))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.label(), err)
	}
	return out.Value(), nil
}

// Compile defers type checking to evaluation time because the declared
// variables depend on the snapshot.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, snapshot map[string]any) (*celProgram, error) {
	key := e.cacheKey(expression, snapshot)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(snapshot)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{env: env, program: prg}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

// cacheKey folds the declared variables and helpers into the key; the same
// expression checked against a different environment is a different program.
func (e *celEvaluator) cacheKey(expression string, snapshot map[string]any) string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return "cel:" + strings.Join(keys, ",") + ":" + strings.Join(e.registry.Names(), ",") + ":" + expression
}

func (e *celEvaluator) buildEnv(snapshot map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.Variable("store", celgo.DynType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", e.overloads("call", 1, e.callBinding())...))
		for _, name := range e.registry.Names() {
			if reservedVariable(name) || celBuiltin(name) {
				continue
			}
			opts = append(opts, celgo.Function(name, e.overloads(name, 0, e.namedBinding(name))...))
		}
	}
	for key := range snapshot {
		if reservedVariable(key) || (key == "call" && e.registry != nil) {
			continue
		}
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) activation(ctx RuleContext, snapshot map[string]any) map[string]any {
	activation := map[string]any{}
	for key, value := range snapshot {
		activation[key] = value
	}
	activation["now"] = ctx.timestamp()
	activation["args"] = ctx.Args
	activation["metadata"] = ctx.Metadata
	binding := ctx.storeBinding()
	if binding == nil {
		binding = map[string]any{}
	}
	activation["store"] = binding
	return activation
}

// maxCELArgs bounds the arities declared for registry helpers; CEL has no
// variadic functions.
const maxCELArgs = 4

// overloads declares name for every arity from fixed to fixed+maxCELArgs.
// The first fixed parameters are strings, the rest dynamic.
func (e *celEvaluator) overloads(name string, fixed int, binding func(values ...ref.Val) ref.Val) []celgo.FunctionOpt {
	var out []celgo.FunctionOpt
	for n := 0; n <= maxCELArgs; n++ {
		params := make([]*celgo.Type, 0, fixed+n)
		for i := 0; i < fixed; i++ {
			params = append(params, celgo.StringType)
		}
		for i := 0; i < n; i++ {
			params = append(params, celgo.DynType)
		}
		out = append(out, celgo.Overload(
			fmt.Sprintf("%s_dyn_%d", name, n),
			params,
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(binding)),
		))
	}
	return out
}

func (e *celEvaluator) callBinding() func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("store: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("store: call name must be string")
		}
		return e.invoke(name, values[1:])
	}
}

func (e *celEvaluator) namedBinding(name string) func(values ...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		return e.invoke(name, values)
	}
}

func (e *celEvaluator) invoke(name string, values []ref.Val) ref.Val {
	args := make([]any, 0, len(values))
	for _, val := range values {
		args = append(args, val.Value())
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

var (
	celStandardOnce sync.Once
	celStandard     *celgo.Env
)

// celBuiltin reports whether name is a CEL standard function or macro.
// Helpers with such names are only reachable through call("name", ...).
func celBuiltin(name string) bool {
	switch name {
	case "has", "all", "exists", "exists_one", "map", "filter", "call":
		return true
	}
	celStandardOnce.Do(func() {
		env, err := celgo.NewEnv()
		if err == nil {
			celStandard = env
		}
	})
	return celStandard != nil && celStandard.HasFunction(name)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.expression)
}
