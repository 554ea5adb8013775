// Package operator defines the capability a plugin module provides to the runtime.
//
// A native plugin is a Go package built with -buildmode=plugin that exports a
// symbol named ConstructorSymbol. The runtime resolves that symbol, calls it with
// the id the controller chose, and owns the returned Operator until it is retreated.
package operator

import (
	"time"

	"github.com/louisbranch/arkomp/pkg/event"
)

// ConstructorSymbol is the export every operator module must provide.
const ConstructorSymbol = "New"

// Frame describes one tick of the render loop.
type Frame struct {
	Number uint64
	Delta  time.Duration
}

// Operator is a live, addressable entity built by a plugin.
//
// The runtime never calls an operator's methods concurrently, so implementations
// need no locking of their own. Methods should return quickly; event delivery and
// rendering for every operator share a small number of goroutines.
type Operator interface {
	ID() string
	StartAnimation(name string)
	HandleEvent(ev event.Event)
	Render(frame Frame)
	UpdateAnimation(frame Frame)
}

// Constructor builds an operator. A nil id lets the module pick its own.
type Constructor func(id *string) (Operator, error)
