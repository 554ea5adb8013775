// Package plugin keeps the named plugins the runtime has loaded and recovers their
// concrete capabilities.
package plugin

import (
	"fmt"
	"reflect"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
)

// Kind names a plugin capability family.
type Kind string

// KindOperator is the kind of plugins that build operators.
const KindOperator Kind = "operator"

// ErrUnsupportedCast indicates a plugin that lacks the requested capability.
var ErrUnsupportedCast = apperrors.New(apperrors.CodeUnsupportedCast, "Unsupported plugin cast")

// Plugin is a loaded, named extension. Concrete kinds add their own capabilities.
type Plugin interface {
	Name() string
	Kind() Kind
	Path() string
	// Close gives up the plugin's own reference on its module. Objects already
	// built from the plugin keep the module loaded until they are released.
	Close() error
}

// As recovers a concrete capability from a plugin.
func As[T any](p Plugin) (T, error) {
	var zero T
	if p == nil {
		return zero, apperrors.Wrap(apperrors.CodeUnsupportedCast, "Unsupported plugin cast", fmt.Errorf("nil plugin"))
	}
	c, ok := p.(T)
	if !ok {
		return zero, apperrors.Wrap(apperrors.CodeUnsupportedCast, "Unsupported plugin cast",
			fmt.Errorf("plugin %s of kind %s is not %s", p.Name(), p.Kind(), reflect.TypeFor[T]()))
	}
	return c, nil
}

// Info describes a plugin for listings.
type Info struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
	Refs int    `json:"refs"`
}

// Describe summarizes a plugin. Refs is reported for plugins that track module references.
func Describe(p Plugin) Info {
	info := Info{Name: p.Name(), Kind: p.Kind(), Path: p.Path()}
	if rc, ok := p.(interface{ Refs() int }); ok {
		info.Refs = rc.Refs()
	}
	return info
}
