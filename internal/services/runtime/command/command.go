// Package command implements the closed set of operations a controller can invoke
// on the runtime, their wire form, and their execution against shared state.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
	"github.com/louisbranch/arkomp/pkg/event"
)

// Command names as they appear in the "command" field.
const (
	NameLoadPlugin      = "LoadPlugin"
	NameUnloadPlugin    = "UnloadPlugin"
	NameSpawnOperator   = "SpawnOperator"
	NameRetreatOperator = "RetreatOperator"
	NameScheduleEvent   = "ScheduleEvent"
	NameListPlugins     = "ListPlugins"
	NameListOperators   = "ListOperators"
)

// Names lists every command in wire order.
var Names = []string{
	NameLoadPlugin,
	NameUnloadPlugin,
	NameSpawnOperator,
	NameRetreatOperator,
	NameScheduleEvent,
	NameListPlugins,
	NameListOperators,
}

// Command is one request. The set is closed: only types in this package implement it.
type Command interface {
	CommandName() string
	execute(ctx context.Context, c *Context) Response
}

// Position is a screen coordinate.
type Position [2]int32

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p[0], p[1])
}

// LoadPlugin opens the module at Path and registers it as Name.
type LoadPlugin struct {
	Name string
	Path string
}

// UnloadPlugin deregisters the plugin Name.
type UnloadPlugin struct {
	Name string
}

// SpawnOperator builds operator Name. Plugin defaults to Name.
type SpawnOperator struct {
	Name     string
	Position Position
	Plugin   string
}

// PluginName returns the plugin the operator is built from.
func (c SpawnOperator) PluginName() string {
	if strings.TrimSpace(c.Plugin) == "" {
		return c.Name
	}
	return c.Plugin
}

// RetreatOperator removes operator Name.
type RetreatOperator struct {
	Name     string
	Position Position
}

// ScheduleEvent queues Event for routing.
type ScheduleEvent struct {
	Event event.Event
}

// ListPlugins describes every registered plugin.
type ListPlugins struct{}

// ListOperators lists the ids of live operators.
type ListOperators struct{}

func (LoadPlugin) CommandName() string      { return NameLoadPlugin }
func (UnloadPlugin) CommandName() string    { return NameUnloadPlugin }
func (SpawnOperator) CommandName() string   { return NameSpawnOperator }
func (RetreatOperator) CommandName() string { return NameRetreatOperator }
func (ScheduleEvent) CommandName() string   { return NameScheduleEvent }
func (ListPlugins) CommandName() string     { return NameListPlugins }
func (ListOperators) CommandName() string   { return NameListOperators }

// wire is the JSON shape shared by all commands.
type wire struct {
	Command  string          `json:"command"`
	Name     *string         `json:"name,omitempty"`
	Path     *string         `json:"path,omitempty"`
	Plugin   *string         `json:"plugin,omitempty"`
	Position *Position       `json:"position,omitempty"`
	Event    json.RawMessage `json:"event,omitempty"`
}

func protocolError(format string, args ...any) error {
	return apperrors.New(apperrors.CodeProtocolInvalid, fmt.Sprintf(format, args...))
}

// Decode parses one command from its wire form.
func Decode(data []byte) (Command, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeProtocolInvalid, "invalid command", err)
	}

	name := func() (string, error) {
		if w.Name == nil {
			return "", protocolError("%s: missing field `name`", w.Command)
		}
		return *w.Name, nil
	}
	position := func() (Position, error) {
		if w.Position == nil {
			return Position{}, protocolError("%s: missing field `position`", w.Command)
		}
		return *w.Position, nil
	}

	switch w.Command {
	case NameLoadPlugin:
		n, err := name()
		if err != nil {
			return nil, err
		}
		if w.Path == nil {
			return nil, protocolError("%s: missing field `path`", w.Command)
		}
		return LoadPlugin{Name: n, Path: *w.Path}, nil
	case NameUnloadPlugin:
		n, err := name()
		if err != nil {
			return nil, err
		}
		return UnloadPlugin{Name: n}, nil
	case NameSpawnOperator:
		n, err := name()
		if err != nil {
			return nil, err
		}
		pos, err := position()
		if err != nil {
			return nil, err
		}
		cmd := SpawnOperator{Name: n, Position: pos}
		if w.Plugin != nil {
			cmd.Plugin = *w.Plugin
		}
		return cmd, nil
	case NameRetreatOperator:
		n, err := name()
		if err != nil {
			return nil, err
		}
		pos, err := position()
		if err != nil {
			return nil, err
		}
		return RetreatOperator{Name: n, Position: pos}, nil
	case NameScheduleEvent:
		if len(w.Event) == 0 || string(w.Event) == "null" {
			return nil, protocolError("%s: missing field `event`", w.Command)
		}
		var ev event.Event
		if err := json.Unmarshal(w.Event, &ev); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeProtocolInvalid, "ScheduleEvent: invalid event", err)
		}
		return ScheduleEvent{Event: ev}, nil
	case NameListPlugins:
		return ListPlugins{}, nil
	case NameListOperators:
		return ListOperators{}, nil
	case "":
		return nil, protocolError("missing field `command`")
	default:
		return nil, protocolError("unknown command %q", w.Command)
	}
}

// Encode produces the wire form of cmd.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("command is required")
	}
	w := wire{Command: cmd.CommandName()}
	switch c := cmd.(type) {
	case LoadPlugin:
		w.Name, w.Path = &c.Name, &c.Path
	case UnloadPlugin:
		w.Name = &c.Name
	case SpawnOperator:
		w.Name, w.Position = &c.Name, &c.Position
		if c.Plugin != "" {
			w.Plugin = &c.Plugin
		}
	case RetreatOperator:
		w.Name, w.Position = &c.Name, &c.Position
	case ScheduleEvent:
		body, err := json.Marshal(c.Event)
		if err != nil {
			return nil, err
		}
		w.Event = body
	case ListPlugins, ListOperators:
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
	return json.Marshal(w)
}
