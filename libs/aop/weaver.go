package aop

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

// StructTag names the target method for a stub field, or "-" to skip it
const StructTag = "aop"

// Weaver synthesizes proxy functions that route calls through a Pipeline
type Weaver struct {
	services core.DIContainer
	pipeline Pipeline
	opts     Options
	registry *registry
}

type registry struct {
	mu          sync.RWMutex
	descriptors map[descriptorKey]*MethodDescriptor
}

// NewWeaver creates a weaver. services is handed to every invocation;
// options may be nil.
func NewWeaver(services core.DIContainer, pipeline Pipeline, options *Options) *Weaver {
	if options == nil {
		options = DefaultOptions()
	}
	opts := *options
	if opts.Logger == nil {
		opts.Logger = core.NopLogger()
	}
	return &Weaver{
		services: services,
		pipeline: pipeline,
		opts:     opts,
		registry: &registry{descriptors: make(map[descriptorKey]*MethodDescriptor)},
	}
}

// WithServices returns a weaver that shares pipeline and descriptors but
// hands services to the invocations it creates
func (w *Weaver) WithServices(services core.DIContainer) *Weaver {
	clone := *w
	clone.services = services
	return &clone
}

// Options returns the weaver's resolved options
func (w *Weaver) Options() Options {
	return w.opts
}

// Methods returns every descriptor synthesized so far, sorted by name
func (w *Weaver) Methods() []*MethodDescriptor {
	w.registry.mu.RLock()
	defer w.registry.mu.RUnlock()

	out := make([]*MethodDescriptor, 0, len(w.registry.descriptors))
	for _, m := range w.registry.descriptors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}

// Func stores in *fnPtr a proxy for the function impl
func (w *Weaver) Func(fnPtr interface{}, impl interface{}) error {
	slot, err := funcSlot(fnPtr)
	if err != nil {
		return err
	}

	implValue := reflect.ValueOf(impl)
	if implValue.Kind() != reflect.Func || implValue.IsNil() {
		return fmt.Errorf("%w: impl must be a non-nil func, got %T", ErrSignatureMismatch, impl)
	}
	if implValue.Type() != slot.Type() {
		return fmt.Errorf("%w: %s vs %s", ErrSignatureMismatch, slot.Type(), implValue.Type())
	}

	name := runtime.FuncForPC(implValue.Pointer()).Name()
	proxy, err := w.weave(name, nil, nil, implValue)
	if err != nil {
		return err
	}
	slot.Set(proxy)
	return nil
}

// Method stores in *fnPtr a proxy for target's method called name
func (w *Weaver) Method(fnPtr interface{}, target interface{}, name string) error {
	slot, err := funcSlot(fnPtr)
	if err != nil {
		return err
	}
	return w.bindMethod(slot, target, name)
}

// Struct fills every exported func field of the struct stubPtr points to
// with a proxy for target's method of the same name (or the name in the
// field's `aop` tag). All problems are reported together.
func (w *Weaver) Struct(stubPtr interface{}, target interface{}) error {
	sv := reflect.ValueOf(stubPtr)
	if sv.Kind() != reflect.Ptr || sv.IsNil() || sv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("stub must be a non-nil pointer to struct, got %T", stubPtr)
	}
	sv = sv.Elem()
	st := sv.Type()

	var result *multierror.Error
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() || field.Type.Kind() != reflect.Func {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get(StructTag); tag != "" {
			if tag == "-" {
				continue
			}
			name = tag
		}
		if err := w.bindMethod(sv.Field(i), target, name); err != nil {
			result = multierror.Append(result, fmt.Errorf("field %s: %w", field.Name, err))
		}
	}
	return result.ErrorOrNil()
}

// NewProxy allocates a stub S and weaves it against target
func NewProxy[S any](w *Weaver, target interface{}) (*S, error) {
	stub := new(S)
	if err := w.Struct(stub, target); err != nil {
		return nil, err
	}
	return stub, nil
}

func (w *Weaver) bindMethod(slot reflect.Value, target interface{}, name string) error {
	tv := reflect.ValueOf(target)
	if !tv.IsValid() {
		return errors.New("target cannot be nil")
	}
	method := tv.MethodByName(name)
	if !method.IsValid() {
		return fmt.Errorf("%w: %s.%s", ErrMethodNotFound, tv.Type(), name)
	}
	if method.Type() != slot.Type() {
		return fmt.Errorf("%w: %s.%s is %s, slot is %s", ErrSignatureMismatch, tv.Type(), name, method.Type(), slot.Type())
	}

	proxy, err := w.weave(name, tv.Type(), target, method)
	if err != nil {
		return err
	}
	slot.Set(proxy)
	return nil
}

// weave synthesizes one proxy. Everything the proxy closes over is
// immutable, so it is safe to call from many goroutines.
func (w *Weaver) weave(name string, receiver reflect.Type, target interface{}, impl reflect.Value) (reflect.Value, error) {
	m, err := w.describe(name, receiver, impl.Type())
	if err != nil {
		return reflect.Value{}, err
	}

	terminal := newTerminal(m, impl)
	pipeline := w.pipeline
	services := w.services

	return reflect.MakeFunc(m.Type, func(in []reflect.Value) []reflect.Value {
		args := Materialize(m, in)
		inv := NewInvocation(services, target, m, args)
		inv.terminal = terminal
		res, err := dispatch(pipeline, inv)
		return adapt(m, res, err)
	}), nil
}

// describe returns the cached descriptor or builds and registers a new one
func (w *Weaver) describe(name string, receiver reflect.Type, fnType reflect.Type) (*MethodDescriptor, error) {
	key := descriptorKey{receiver: receiver, name: name, fnType: fnType}

	w.registry.mu.RLock()
	m, ok := w.registry.descriptors[key]
	w.registry.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := Describe(name, receiver, fnType, w.opts.SupportsLightweightAsync)
	if err != nil {
		return nil, err
	}

	w.registry.mu.Lock()
	if existing, ok := w.registry.descriptors[key]; ok {
		w.registry.mu.Unlock()
		return existing, nil
	}
	w.registry.descriptors[key] = m
	w.registry.mu.Unlock()

	w.opts.Logger.Infor(&core.LoggerItem{
		Event:    "ProxyWoven",
		Messages: fmt.Sprintf("woven %s", m.QualifiedName()),
		Data: struct {
			Method    string    `json:"method"`
			Signature string    `json:"signature"`
			Shape     string    `json:"shape"`
			WovenAt   time.Time `json:"woven_at"`
		}{
			Method:    m.QualifiedName(),
			Signature: m.Type.String(),
			Shape:     m.Shape.String(),
			WovenAt:   time.Now().UTC(),
		},
	})
	return m, nil
}

func funcSlot(fnPtr interface{}) (reflect.Value, error) {
	pv := reflect.ValueOf(fnPtr)
	if pv.Kind() != reflect.Ptr || pv.IsNil() || pv.Elem().Kind() != reflect.Func {
		return reflect.Value{}, fmt.Errorf("fnPtr must be a non-nil pointer to a func, got %T", fnPtr)
	}
	return pv.Elem(), nil
}
