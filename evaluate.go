package store

import (
	"fmt"
	"time"
)

// Select evaluates expr against a fresh snapshot of the store. Top-level
// state keys are variables; now, args, metadata and store are bound too and
// shadow state keys of the same name in every engine, as does call once
// helpers are registered.
func (s *Store) Select(expr string) (any, error) {
	return s.SelectWith(RuleContext{}, expr)
}

// SelectWith evaluates expr using ctx, falling back to a fresh snapshot when
// ctx.Snapshot is nil.
func (s *Store) SelectWith(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("store: expression must not be empty")
	}
	ctx, err := s.ruleContext(ctx)
	if err != nil {
		return nil, err
	}
	evaluator := s.resolveEvaluator()
	return s.logEvaluation(evaluator, ctx, expr, func() (any, error) {
		return evaluator.Evaluate(ctx, expr)
	})
}

// Selector is a compiled expression bound to one store.
type Selector struct {
	store     *Store
	expr      string
	evaluator Evaluator
	rule      CompiledRule
}

// Compile prepares expr for repeated evaluation with the store's evaluator.
func (s *Store) Compile(expr string) (*Selector, error) {
	if expr == "" {
		return nil, fmt.Errorf("store: expression must not be empty")
	}
	evaluator := s.resolveEvaluator()
	rule, err := evaluator.Compile(expr)
	if err != nil {
		return nil, wrapEvaluationError(evaluatorEngineName(evaluator), expr, s.label(), err)
	}
	return &Selector{store: s, expr: expr, evaluator: evaluator, rule: rule}, nil
}

// Expr returns the source expression.
func (sel *Selector) Expr() string {
	return sel.expr
}

// Value evaluates the selector against a fresh snapshot.
func (sel *Selector) Value() (any, error) {
	return sel.ValueWith(RuleContext{})
}

// ValueWith evaluates the selector using ctx.
func (sel *Selector) ValueWith(ctx RuleContext) (any, error) {
	ctx, err := sel.store.ruleContext(ctx)
	if err != nil {
		return nil, err
	}
	return sel.store.logEvaluation(sel.evaluator, ctx, sel.expr, func() (any, error) {
		return sel.rule.Evaluate(ctx)
	})
}

func (s *Store) ruleContext(ctx RuleContext) (RuleContext, error) {
	if ctx.Snapshot == nil {
		current, err := s.GetState()
		if err != nil {
			return RuleContext{}, err
		}
		ctx.Snapshot = current
	}
	if ctx.StoreID == "" {
		ctx.StoreID = s.id.String()
	}
	if ctx.Store == "" {
		ctx.Store = s.name
	}
	return ctx.withDefaults(), nil
}

func (s *Store) logEvaluation(evaluator Evaluator, ctx RuleContext, expr string, run func() (any, error)) (any, error) {
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, err := run()
	duration := time.Since(start)
	err = wrapEvaluationError(engine, expr, ctx.label(), err)
	s.logger.LogEvaluation(EvaluationLogEvent{
		Engine:   engine,
		Expr:     expr,
		Store:    ctx.label(),
		Duration: duration,
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Built-in selector engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// resolveEvaluator builds the configured engine (expr by default) on first
// use, sharing the store's program cache and function registry.
func (s *Store) resolveEvaluator() Evaluator {
	s.evalOnce.Do(func() {
		if s.evaluator != nil {
			return
		}
		s.evaluator = newEngine(s.engine, s.programCache, s.functions)
	})
	return s.evaluator
}

func newEngine(engine string, cache ProgramCache, functions *FunctionRegistry) Evaluator {
	switch engine {
	case EngineCEL:
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(functions))
	case EngineJS:
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(functions))
	default:
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(functions))
	}
}

// reservedVariable reports the names every engine binds itself.
func reservedVariable(name string) bool {
	switch name {
	case "now", "args", "metadata", "store":
		return true
	default:
		return false
	}
}

func (s *Store) label() string {
	return RuleContext{StoreID: s.id.String(), Store: s.name}.label()
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *jsEvaluator:
		return "js"
	default:
		return "custom"
	}
}
