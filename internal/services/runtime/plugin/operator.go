package plugin

import (
	"fmt"
	"log"
	"reflect"
	"runtime/debug"
	"strings"
	"sync/atomic"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
	"github.com/louisbranch/arkomp/internal/services/runtime/module"
	"github.com/louisbranch/arkomp/pkg/operator"
)

// OperatorPlugin builds operators from the constructor its module exports.
type OperatorPlugin struct {
	name   string
	lease  *module.Lease
	closed atomic.Bool
}

// LoadOperatorPlugin opens the module at path and checks that it exports a usable
// constructor.
func LoadOperatorPlugin(loader *module.Loader, name, path string) (*OperatorPlugin, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("plugin name is required")
	}
	lease, err := loader.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := resolveConstructor(lease); err != nil {
		lease.Release()
		return nil, err
	}
	return NewOperatorPlugin(name, lease), nil
}

// NewOperatorPlugin wraps an already opened module. The plugin takes over lease.
func NewOperatorPlugin(name string, lease *module.Lease) *OperatorPlugin {
	return &OperatorPlugin{name: name, lease: lease}
}

func (p *OperatorPlugin) Name() string { return p.name }

func (p *OperatorPlugin) Kind() Kind { return KindOperator }

func (p *OperatorPlugin) Path() string { return p.lease.Handle().Path() }

// Refs returns the number of live references on the plugin's module.
func (p *OperatorPlugin) Refs() int { return p.lease.Handle().Refs() }

// Close releases the plugin's reference. Operators built earlier stay usable.
func (p *OperatorPlugin) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.lease.Release()
	}
	return nil
}

// Build constructs a new operator. The returned Instance holds its own reference on
// the module and must be released when the operator is retired.
func (p *OperatorPlugin) Build(id *string) (Instance, error) {
	if p.closed.Load() {
		return Instance{}, module.ErrModuleReleased
	}
	lease, err := p.lease.Handle().Acquire()
	if err != nil {
		return Instance{}, err
	}
	ctor, err := resolveConstructor(lease)
	if err != nil {
		lease.Release()
		return Instance{}, err
	}
	op, opID, err := construct(ctor, id)
	if err != nil {
		lease.Release()
		return Instance{}, apperrors.Wrap(apperrors.CodeOperatorBuildFailed, "operator constructor failed", err)
	}
	return Instance{Operator: op, Plugin: p.name, id: opID, lease: lease}, nil
}

func resolveConstructor(lease *module.Lease) (operator.Constructor, error) {
	sym, err := lease.Lookup(operator.ConstructorSymbol)
	if err != nil {
		return nil, err
	}
	var ctor operator.Constructor
	switch fn := sym.(type) {
	case func(*string) (operator.Operator, error):
		ctor = fn
	case operator.Constructor:
		ctor = fn
	case *func(*string) (operator.Operator, error):
		if fn != nil {
			ctor = *fn
		}
	case *operator.Constructor:
		if fn != nil {
			ctor = *fn
		}
	default:
		return nil, apperrors.New(apperrors.CodeSymbolNotFound,
			fmt.Sprintf("Symbol not found: %s has type %T, want func(*string) (operator.Operator, error)", operator.ConstructorSymbol, sym))
	}
	if ctor == nil {
		return nil, apperrors.New(apperrors.CodeSymbolNotFound, fmt.Sprintf("Symbol not found: %s is nil", operator.ConstructorSymbol))
	}
	return ctor, nil
}

// construct runs the constructor and reads the new operator's id, recovering
// panics from either call.
func construct(ctor operator.Constructor, id *string) (op operator.Operator, opID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("plugin: constructor panic: %v\n%s", r, debug.Stack())
			op, opID, err = nil, "", fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	op, err = ctor(id)
	if err != nil {
		return nil, "", err
	}
	if isNil(op) {
		return nil, "", fmt.Errorf("constructor returned no operator")
	}
	return op, op.ID(), nil
}

// isNil also catches typed nils such as (*T)(nil) stored in the interface.
func isNil(op operator.Operator) bool {
	if op == nil {
		return true
	}
	v := reflect.ValueOf(op)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Instance is a live operator together with the module reference that keeps its
// code loaded.
type Instance struct {
	operator.Operator
	// Plugin is the name of the plugin that built the operator.
	Plugin string
	id     string
	lease  *module.Lease
}

// NewInstance pairs op with the lease it depends on. A nil lease is allowed for
// operators that do not come from a module.
func NewInstance(op operator.Operator, pluginName string, lease *module.Lease) Instance {
	return Instance{Operator: op, Plugin: pluginName, id: op.ID(), lease: lease}
}

// ID returns the id the operator reported when it was built.
func (i Instance) ID() string { return i.id }

// Release drops the instance's module reference. The operator must not be used
// afterwards.
func (i Instance) Release() {
	i.lease.Release()
}
