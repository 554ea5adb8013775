package module

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"runtime/debug"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
)

// NativeOpener opens shared objects built with -buildmode=plugin.
type NativeOpener struct{}

// Open maps the shared object into the process.
func (NativeOpener) Open(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Loader picks an Opener by file extension.
type Loader struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewLoader returns a loader that opens ".so" files natively.
func NewLoader() *Loader {
	l := &Loader{openers: make(map[string]Opener)}
	l.Register(".so", NativeOpener{})
	return l
}

// Register sets the opener for an extension such as ".lua".
func (l *Loader) Register(ext string, opener Opener) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openers[ext] = opener
}

// Open loads the module at path and returns the first lease on it.
func (l *Loader) Open(path string) (*Lease, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, apperrors.New(apperrors.CodePluginFileNotFound, "Plugin file not found: path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePluginFileNotFound, "Plugin file not found", err)
	}
	if info.IsDir() {
		return nil, apperrors.New(apperrors.CodePluginFileNotFound, fmt.Sprintf("Plugin file not found: %s is a directory", path))
	}

	ext := strings.ToLower(filepath.Ext(path))
	l.mu.RLock()
	opener, ok := l.openers[ext]
	l.mu.RUnlock()
	if !ok {
		return nil, apperrors.New(apperrors.CodePluginFileNotFound, fmt.Sprintf("Plugin file not found: no loader for %q modules", ext))
	}

	lib, err := openRecovered(opener, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePluginFileNotFound, fmt.Sprintf("Plugin file not found: %s", path), err)
	}
	h := newHandle(path, lib)
	return h.Acquire()
}

// openRecovered guards against module initializers that panic.
func openRecovered(opener Opener, path string) (lib Library, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module initializer panicked: %v\n%s", r, debug.Stack())
		}
	}()
	lib, err = opener.Open(path)
	if err == nil && lib == nil {
		err = fmt.Errorf("opener returned no library")
	}
	return lib, err
}
