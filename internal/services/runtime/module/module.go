package module

import (
	"fmt"
	"io"
	"log"
	"plugin"
	"sync"
	"sync/atomic"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
)

var (
	// ErrModuleNotFound indicates a module file that is absent or not loadable.
	ErrModuleNotFound = apperrors.New(apperrors.CodePluginFileNotFound, "Plugin file not found")
	// ErrSymbolNotFound indicates a module without the requested export.
	ErrSymbolNotFound = apperrors.New(apperrors.CodeSymbolNotFound, "Symbol not found")
	// ErrModuleReleased indicates use of a module after its last reference was dropped.
	ErrModuleReleased = apperrors.New(apperrors.CodeModuleReleased, "module has been released")
)

// Library resolves exported symbols. *plugin.Plugin satisfies it.
type Library interface {
	Lookup(symbol string) (plugin.Symbol, error)
}

// Opener opens a Library from a filesystem path.
type Opener interface {
	Open(path string) (Library, error)
}

// Handle is one loaded module and its reference count.
type Handle struct {
	path string

	mu   sync.Mutex
	lib  Library
	refs int
}

func newHandle(path string, lib Library) *Handle {
	return &Handle{path: path, lib: lib}
}

// Path returns the path the module was opened from.
func (h *Handle) Path() string {
	return h.path
}

// Refs returns the number of live leases.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// Released reports whether the last lease has been released.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lib == nil
}

// Acquire takes a new reference on the module.
func (h *Handle) Acquire() (*Lease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lib == nil {
		return nil, ErrModuleReleased
	}
	h.refs++
	return &Lease{handle: h}, nil
}

func (h *Handle) lookup(symbol string) (plugin.Symbol, error) {
	h.mu.Lock()
	lib := h.lib
	h.mu.Unlock()
	if lib == nil {
		return nil, ErrModuleReleased
	}
	sym, err := lib.Lookup(symbol)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSymbolNotFound, fmt.Sprintf("Symbol not found: %s in %s", symbol, h.path), err)
	}
	return sym, nil
}

func (h *Handle) release() {
	h.mu.Lock()
	h.refs--
	if h.refs > 0 {
		h.mu.Unlock()
		return
	}
	lib := h.lib
	h.lib = nil
	h.mu.Unlock()

	if closer, ok := lib.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("module: close path=%q err=%v", h.path, err)
		}
	}
	log.Printf("module: released path=%q", h.path)
}

// Lease is one reference on a Handle. The zero value is not usable.
type Lease struct {
	handle   *Handle
	released atomic.Bool
}

// Handle returns the module the lease refers to.
func (l *Lease) Handle() *Handle {
	return l.handle
}

// Lookup resolves an exported symbol while the lease is held.
func (l *Lease) Lookup(symbol string) (plugin.Symbol, error) {
	if l.released.Load() {
		return nil, ErrModuleReleased
	}
	return l.handle.lookup(symbol)
}

// Release drops the reference. Calling it more than once has no further effect.
func (l *Lease) Release() {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}
	l.handle.release()
}
