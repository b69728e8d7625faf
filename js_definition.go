package store

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/dop251/goja"
)

var jsHandlerName = regexp.MustCompile(`^on[A-Z]`)

var errStateInitializing = errors.New("store: state is not available while getInitialState runs")

// JSDefinitionOption configures FromJS.
type JSDefinitionOption func(*jsDefinitionConfig)

type jsDefinitionConfig struct {
	runtime *goja.Runtime
	globals map[string]any
}

// JSWithRuntime evaluates the definition on an existing runtime, so handlers
// can reach values the caller already set on it.
func JSWithRuntime(vm *goja.Runtime) JSDefinitionOption {
	return func(cfg *jsDefinitionConfig) {
		cfg.runtime = vm
	}
}

// JSWithGlobals sets global variables before the source is evaluated.
func JSWithGlobals(globals map[string]any) JSDefinitionOption {
	return func(cfg *jsDefinitionConfig) {
		if cfg.globals == nil {
			cfg.globals = map[string]any{}
		}
		for key, value := range globals {
			cfg.globals[key] = value
		}
	}
}

// FromJS builds a Definition from JavaScript source evaluating to an object
// literal or a constructor function. Methods named on<Action> become
// handlers and getInitialState, when present, provides the initial state.
//
// Every store built from the definition gets its own object inheriting from
// the definition, with getState/read, setState/write and a state mirror
// bound to that store:
//
//	{
//	  getInitialState: function () { return {count: 0}; },
//	  onIncrement: function (n) { this.setState({count: this.getState().count + n}); }
//	}
//
// A goja runtime is not safe for concurrent use: drive stores built from one
// definition from a single goroutine.
func FromJS(source string, opts ...JSDefinitionOption) (*JSDefinition, error) {
	cfg := jsDefinitionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	vm := cfg.runtime
	if vm == nil {
		vm = goja.New()
	}
	globals := make([]string, 0, len(cfg.globals))
	for key := range cfg.globals {
		globals = append(globals, key)
	}
	sort.Strings(globals)
	for _, key := range globals {
		if err := vm.Set(key, cfg.globals[key]); err != nil {
			return nil, fmt.Errorf("%w: set global %q: %v", ErrInvalidDefinition, key, err)
		}
	}

	value, err := vm.RunString("(" + source + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: evaluate source: %v", ErrInvalidDefinition, err)
	}
	if goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, fmt.Errorf("%w: source must evaluate to an object", ErrInvalidDefinition)
	}

	def := &JSDefinition{vm: vm, bindings: map[*Instance]*jsBinding{}}
	if _, ok := goja.AssertConstructor(value); ok {
		def.constructor = value
		prototype := value.ToObject(vm).Get("prototype")
		if prototype == nil || goja.IsUndefined(prototype) {
			return nil, fmt.Errorf("%w: constructor has no prototype", ErrInvalidDefinition)
		}
		def.prototype = prototype.ToObject(vm)
	} else {
		def.prototype = value.ToObject(vm)
	}

	def.handlers = def.collectHandlers()
	return def, nil
}

// JSDefinition is a Definition backed by a goja object.
type JSDefinition struct {
	vm          *goja.Runtime
	prototype   *goja.Object
	constructor goja.Value
	handlers    Handlers

	mu       sync.Mutex
	bindings map[*Instance]*jsBinding
}

// Handlers implements Definition.
func (d *JSDefinition) Handlers() Handlers {
	out := make(Handlers, len(d.handlers))
	for name, fn := range d.handlers {
		out[name] = fn
	}
	return out
}

// InitialStateFor implements InstanceInitializer. getInitialState runs with
// the store's own object as receiver, after the constructor.
func (d *JSDefinition) InitialStateFor(inst *Instance) (any, error) {
	binding := d.binding(inst)
	if binding == nil {
		return nil, fmt.Errorf("store: js definition not bound to store %s", inst.ID())
	}
	return binding.initialState()
}

// Bind implements Binder. It creates the per-store object.
func (d *JSDefinition) Bind(inst *Instance) error {
	var obj *goja.Object
	if d.constructor != nil {
		created, err := d.vm.New(d.constructor)
		if err != nil {
			return fmt.Errorf("store: js constructor: %w", err)
		}
		obj = created
	} else {
		obj = d.vm.CreateObject(d.prototype)
	}

	binding := &jsBinding{vm: d.vm, obj: obj, inst: inst}
	if err := binding.install(); err != nil {
		return err
	}

	d.mu.Lock()
	d.bindings[inst] = binding
	d.mu.Unlock()
	return nil
}

func (d *JSDefinition) binding(inst *Instance) *jsBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bindings[inst]
}

// collectHandlers walks the prototype chain up to Object.prototype. Names
// found closer to the definition win.
func (d *JSDefinition) collectHandlers() Handlers {
	handlers := Handlers{}
	for obj := d.prototype; obj != nil && obj.Prototype() != nil; obj = obj.Prototype() {
		for _, name := range obj.GetOwnPropertyNames() {
			if !jsHandlerName.MatchString(name) {
				continue
			}
			if _, seen := handlers[name]; seen {
				continue
			}
			if _, ok := goja.AssertFunction(obj.Get(name)); !ok {
				continue
			}
			handlers[name] = d.handler(name)
		}
	}
	return handlers
}

func (d *JSDefinition) handler(name string) HandlerFunc {
	return func(inst *Instance, args ...any) error {
		binding := d.binding(inst)
		if binding == nil {
			return fmt.Errorf("store: js definition not bound to store %s", inst.ID())
		}
		return binding.call(name, args)
	}
}

type jsBinding struct {
	vm   *goja.Runtime
	obj  *goja.Object
	inst *Instance
	// set while getInitialState runs; read and write throw
	initializing bool
	// Go error behind the last exception thrown from read or write
	failure error
}

func (b *jsBinding) install() error {
	read := func(goja.FunctionCall) goja.Value {
		if b.initializing {
			b.throw(errStateInitializing)
		}
		current, err := b.inst.Read()
		if err != nil {
			b.throw(err)
		}
		return b.vm.ToValue(current)
	}
	write := func(call goja.FunctionCall) goja.Value {
		if b.initializing {
			b.throw(errStateInitializing)
		}
		var partial any
		if arg := call.Argument(0); !goja.IsUndefined(arg) {
			partial = arg.Export()
		}
		if err := b.inst.Write(partial); err != nil {
			b.throw(err)
		}
		return goja.Undefined()
	}
	mirror := func(goja.FunctionCall) goja.Value {
		return b.vm.ToValue(b.inst.State())
	}

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"getState": read,
		"read":     read,
		"setState": write,
		"write":    write,
	} {
		if err := b.obj.Set(name, fn); err != nil {
			return fmt.Errorf("store: js bind %s: %w", name, err)
		}
	}
	if err := b.obj.Set("id", b.inst.ID().String()); err != nil {
		return fmt.Errorf("store: js bind id: %w", err)
	}
	if err := b.obj.DefineAccessorProperty("state", b.vm.ToValue(mirror), nil, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return fmt.Errorf("store: js bind state: %w", err)
	}
	return nil
}

func (b *jsBinding) initialState() (any, error) {
	fn, ok := goja.AssertFunction(b.obj.Get("getInitialState"))
	if !ok {
		return map[string]any{}, nil
	}
	b.initializing = true
	defer func() { b.initializing = false }()
	value, err := fn(b.obj)
	if err != nil {
		return nil, fmt.Errorf("store: js getInitialState: %w", err)
	}
	return value.Export(), nil
}

func (b *jsBinding) throw(err error) {
	b.failure = err
	panic(b.vm.NewGoError(err))
}

func (b *jsBinding) call(name string, args []any) error {
	fn, ok := goja.AssertFunction(b.obj.Get(name))
	if !ok {
		return fmt.Errorf("%w: js handler %s is not a function", ErrUnknownAction, name)
	}
	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = b.vm.ToValue(arg)
	}

	previous := b.failure
	b.failure = nil
	defer func() { b.failure = previous }()

	if _, err := fn(b.obj, values...); err != nil {
		var exception *goja.Exception
		if b.failure != nil && errors.As(err, &exception) {
			return b.failure
		}
		return fmt.Errorf("store: js handler %s: %w", name, err)
	}
	return nil
}
