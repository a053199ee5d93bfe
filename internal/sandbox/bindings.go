package sandbox

import (
	"math"

	"github.com/dop251/goja"

	"github.com/seantiz/cadence/internal/model"
)

// bind installs the script-visible globals on vm.
func bind(vm *goja.Runtime, req Request, con *console) error {
	globals := req.Globals
	if globals == nil {
		globals = NewGlobalStore()
	}
	props := req.Props
	if props == nil {
		props = make(map[string]float64)
	}

	logFn := func(kind string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			con.add(kind, call.Arguments)
			return goja.Undefined()
		}
	}

	cons := vm.NewObject()
	for name, kind := range map[string]string{
		"log":   model.ConsoleLog,
		"info":  model.ConsoleLog,
		"debug": model.ConsoleLog,
		"warn":  model.ConsoleError,
		"error": model.ConsoleError,
	} {
		if err := cons.Set(name, logFn(kind)); err != nil {
			return err
		}
	}

	vars := map[string]any{
		"global":      vm.NewDynamicObject(&globalObject{vm: vm, store: globals}),
		"props":       vm.NewDynamicObject(&propsObject{vm: vm, props: props}),
		"frame":       req.Frame,
		"totalFrames": req.TotalFrames,
		"fps":         req.FPS,
		"console":     cons,
		"print":       logFn(model.ConsoleLog),
		"trace":       logFn(model.ConsoleLog),
	}
	if req.Timeline != nil {
		tl, err := timelineObject(vm, req.Timeline)
		if err != nil {
			return err
		}
		vars["timeline"] = tl
	}
	for name, v := range vars {
		if err := vm.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// globalObject exposes a GlobalStore to scripts as the "global" object.
type globalObject struct {
	vm    *goja.Runtime
	store *GlobalStore
}

func (g *globalObject) Get(key string) goja.Value {
	v, ok := g.store.Get(key)
	if !ok {
		return goja.Undefined()
	}
	return g.vm.ToValue(v)
}

// Set rejects functions: they are bound to the interpreter that created them
// and cannot outlive the invocation.
func (g *globalObject) Set(key string, val goja.Value) bool {
	if _, ok := goja.AssertFunction(val); ok {
		return false
	}
	if goja.IsUndefined(val) {
		g.store.Delete(key)
		return true
	}
	g.store.Set(key, val.Export())
	return true
}

func (g *globalObject) Has(key string) bool { return g.store.Has(key) }

func (g *globalObject) Delete(key string) bool {
	g.store.Delete(key)
	return true
}

func (g *globalObject) Keys() []string { return g.store.Keys() }

// propsObject exposes the frame's property snapshot as the "props" object.
// Only finite numbers may be written.
type propsObject struct {
	vm    *goja.Runtime
	props map[string]float64
}

func (p *propsObject) Get(key string) goja.Value {
	v, ok := p.props[key]
	if !ok {
		return goja.Undefined()
	}
	return p.vm.ToValue(v)
}

func (p *propsObject) Set(key string, val goja.Value) bool {
	switch val.Export().(type) {
	case int64, float64:
	default:
		return false
	}
	f := val.ToFloat()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	p.props[key] = f
	return true
}

func (p *propsObject) Has(key string) bool {
	_, ok := p.props[key]
	return ok
}

func (p *propsObject) Delete(key string) bool {
	delete(p.props, key)
	return true
}

func (p *propsObject) Keys() []string {
	keys := make([]string, 0, len(p.props))
	for k := range p.props {
		keys = append(keys, k)
	}
	return keys
}

// timelineObject builds the "timeline" binding.
func timelineObject(vm *goja.Runtime, c Controller) (*goja.Object, error) {
	frameArg := func(call goja.FunctionCall, name string) int {
		a := call.Argument(0)
		if goja.IsUndefined(a) || goja.IsNull(a) {
			panic(vm.NewTypeError(name + " requires a frame number"))
		}
		return int(a.ToInteger())
	}

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"play":  func(goja.FunctionCall) goja.Value { c.Play(); return goja.Undefined() },
		"pause": func(goja.FunctionCall) goja.Value { c.Pause(); return goja.Undefined() },
		"stop":  func(goja.FunctionCall) goja.Value { c.Stop(); return goja.Undefined() },
		"gotoAndPlay": func(call goja.FunctionCall) goja.Value {
			c.GotoAndPlay(frameArg(call, "gotoAndPlay"))
			return goja.Undefined()
		},
		"gotoAndStop": func(call goja.FunctionCall) goja.Value {
			c.GotoAndStop(frameArg(call, "gotoAndStop"))
			return goja.Undefined()
		},
		"currentFrame": func(goja.FunctionCall) goja.Value { return vm.ToValue(c.CurrentFrame()) },
		"totalFrames":  func(goja.FunctionCall) goja.Value { return vm.ToValue(c.TotalFrames()) },
	}

	obj := vm.NewObject()
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
