package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprparser "github.com/expr-lang/expr/parser"
	exprtypes "github.com/expr-lang/expr/types"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator runs selectors with github.com/expr-lang/expr. Top-level
// state keys are bound as variables next to now, args, metadata and store;
// state keys win over expr builtins of the same name.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. It is
// the default selector engine.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	env := e.environment(ctx)
	program, err := e.loadOrCompile(expression, e.variables(env))
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, ctx.label(), err)
	}
	return result, nil
}

// Compile only parses expression. Type checking waits for the first
// snapshot, because state keys shadow builtins such as count and len.
func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("expression must not be empty"))
	}
	if _, err := exprparser.Parse(expression); err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	return &exprCompiledRule{evaluator: e, expression: expression}, nil
}

// variables lists the top-level names of env that must resolve as
// variables, sorted. Registry helpers stay functions.
func (e *exprEvaluator) variables(env map[string]any) []string {
	names := make([]string, 0, len(env))
	for name := range env {
		if (name == "call" && e.registry != nil) || e.isHelper(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *exprEvaluator) isHelper(name string) bool {
	if e.registry == nil {
		return false
	}
	for _, helper := range e.registry.Names() {
		if helper == name {
			return true
		}
	}
	return false
}

// loadOrCompile checks expression against the given variable names, each
// declared as any. The names are part of the cache key.
func (e *exprEvaluator) loadOrCompile(expression string, variables []string) (*exprvm.Program, error) {
	key := "expr:" + strings.Join(variables, ",") + ":" + strings.Join(e.registry.Names(), ",") + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	declared := exprtypes.Map{}
	for _, name := range variables {
		declared[name] = exprtypes.Any
	}
	options := []exprlang.Option{
		exprlang.Env(declared),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry != nil {
		options = append(options, exprlang.Function("call", e.callByName))
		for _, name := range e.registry.Names() {
			options = append(options, exprlang.Function(name, e.call(name)))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *exprEvaluator) environment(ctx RuleContext) map[string]any {
	env := map[string]any{}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		env[key] = value
	}
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	if binding := ctx.storeBinding(); binding != nil {
		env["store"] = binding
	}
	if e.registry != nil {
		env["call"] = e.callByName
	}
	return env
}

func (e *exprEvaluator) callByName(params ...any) (any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("store: call requires function name")
	}
	name, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("store: call name must be string")
	}
	return e.registry.Call(name, params[1:]...)
}

func (e *exprEvaluator) call(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

type exprCompiledRule struct {
	evaluator  *exprEvaluator
	expression string

	mu       sync.Mutex
	programs map[string]*exprvm.Program
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("compiled rule missing evaluator"))
	}
	ctx = ctx.withDefaults()
	env := r.evaluator.environment(ctx)
	program, err := r.program(r.evaluator.variables(env))
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.label(), err)
	}
	return result, nil
}

// program keeps one checked program per variable set.
func (r *exprCompiledRule) program(variables []string) (*exprvm.Program, error) {
	key := strings.Join(variables, ",")
	r.mu.Lock()
	defer r.mu.Unlock()
	if program, ok := r.programs[key]; ok {
		return program, nil
	}
	program, err := r.evaluator.loadOrCompile(r.expression, variables)
	if err != nil {
		return nil, err
	}
	if r.programs == nil {
		r.programs = map[string]*exprvm.Program{}
	}
	r.programs[key] = program
	return program, nil
}
