// Package script loads operator modules written in Lua.
//
// A script module is a single .lua file. Every operator built from it runs in its
// own interpreter state, so scripts may keep per-operator data in globals. The
// runtime calls the following globals when they are defined:
//
//	init(id)                  once, after the chunk ran
//	on_event(kind, fields)    for each event addressed to the operator
//	on_animation(name)        when an animation is started
//	on_render(frame, delta)   once per frame
//	on_update(frame, delta)   once per frame, after on_render
//
// Scripts can write to the runtime log with log(msg).
package script

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/arkomp/internal/services/runtime/module"
	"github.com/louisbranch/arkomp/pkg/event"
	"github.com/louisbranch/arkomp/pkg/operator"
)

// Extension is the file extension script modules use.
const Extension = ".lua"

// Opener reads and syntax-checks script modules.
type Opener struct{}

// Open loads the script at path.
func (Opener) Open(path string) (module.Library, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	state := lua.NewState()
	if err := lua.LoadBuffer(state, string(src), chunkName(path), ""); err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return &Library{path: path, source: string(src)}, nil
}

// Library is an opened script module. Its only export is the operator constructor.
type Library struct {
	path string

	mu     sync.Mutex
	source string
	closed bool
}

// Lookup resolves the constructor export.
func (l *Library) Lookup(symbol string) (plugin.Symbol, error) {
	if symbol != operator.ConstructorSymbol {
		return nil, fmt.Errorf("script %s exports only %s", l.path, operator.ConstructorSymbol)
	}
	return operator.Constructor(l.newOperator), nil
}

// Close drops the script source. Operators already built keep their own state.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.source = ""
	return nil
}

func (l *Library) newOperator(id *string) (operator.Operator, error) {
	l.mu.Lock()
	src, closed := l.source, l.closed
	l.mu.Unlock()
	if closed {
		return nil, module.ErrModuleReleased
	}

	opID := strings.TrimSuffix(filepath.Base(l.path), filepath.Ext(l.path))
	if id != nil {
		opID = *id
	}
	op := &Operator{id: opID, state: lua.NewState()}
	lua.OpenLibraries(op.state)
	op.state.Register("log", op.luaLog)

	if err := lua.LoadBuffer(op.state, src, chunkName(l.path), ""); err != nil {
		return nil, fmt.Errorf("compile %s: %w", l.path, err)
	}
	if err := op.state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run %s: %w", l.path, err)
	}
	if err := op.invoke("init", func(s *lua.State) int {
		s.PushString(op.id)
		return 1
	}); err != nil {
		return nil, err
	}
	return op, nil
}

func chunkName(path string) string {
	return "@" + filepath.Base(path)
}

// Operator is an operator driven by a script.
type Operator struct {
	id    string
	state *lua.State
}

func (o *Operator) ID() string { return o.id }

func (o *Operator) StartAnimation(name string) {
	o.call("on_animation", func(s *lua.State) int {
		s.PushString(name)
		return 1
	})
}

func (o *Operator) HandleEvent(ev event.Event) {
	o.call("on_event", func(s *lua.State) int {
		s.PushString(string(ev.Kind))
		pushEventFields(s, ev)
		return 2
	})
}

func (o *Operator) Render(frame operator.Frame) {
	o.call("on_render", pushFrame(frame))
}

func (o *Operator) UpdateAnimation(frame operator.Frame) {
	o.call("on_update", pushFrame(frame))
}

func (o *Operator) call(hook string, push func(*lua.State) int) {
	if err := o.invoke(hook, push); err != nil {
		log.Printf("script: hook failed op=%q err=%v", o.id, err)
	}
}

// invoke calls a global function if the script defines it.
func (o *Operator) invoke(hook string, push func(*lua.State) int) error {
	o.state.Global(hook)
	if !o.state.IsFunction(-1) {
		o.state.Pop(1)
		return nil
	}
	if err := o.state.ProtectedCall(push(o.state), 0, 0); err != nil {
		o.state.Pop(1) // error value
		return fmt.Errorf("%s: %w", hook, err)
	}
	return nil
}

func (o *Operator) luaLog(s *lua.State) int {
	log.Printf("script: op=%q %s", o.id, lua.CheckString(s, 1))
	return 0
}

func pushFrame(frame operator.Frame) func(*lua.State) int {
	return func(s *lua.State) int {
		s.PushInteger(int(frame.Number))
		s.PushNumber(frame.Delta.Seconds())
		return 2
	}
}

func pushEventFields(s *lua.State, ev event.Event) {
	s.NewTable()
	s.PushString(ev.OpID)
	s.SetField(-2, "op_id")
	switch ev.Kind {
	case event.KindSetSkin:
		s.PushString(ev.Skin)
		s.SetField(-2, "skin")
	case event.KindSetAnimation:
		s.PushString(ev.Animation)
		s.SetField(-2, "ani")
	case event.KindMoveTo:
		s.NewTable()
		s.PushNumber(float64(ev.Pos[0]))
		s.SetField(-2, "x")
		s.PushNumber(float64(ev.Pos[1]))
		s.SetField(-2, "y")
		s.SetField(-2, "pos")
	case event.KindCustomEvent:
		s.PushString(ev.Payload)
		s.SetField(-2, "payload")
	}
	if len(ev.Raw) > 0 && !ev.Kind.Known() {
		s.PushString(string(ev.Raw))
		s.SetField(-2, "raw")
	}
}
