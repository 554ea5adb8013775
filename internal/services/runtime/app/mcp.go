package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/arkomp/internal/services/runtime/command"
	"github.com/louisbranch/arkomp/internal/services/runtime/storage"
	"github.com/louisbranch/arkomp/pkg/event"
)

const (
	mcpServerName    = "arkomp"
	mcpServerVersion = "1.0.0"

	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// LoadPluginInput is the input of the load_plugin tool.
type LoadPluginInput struct {
	Name string `json:"name" jsonschema:"name to register the plugin under"`
	Path string `json:"path" jsonschema:"filesystem path of the module (.so or .lua)"`
}

// UnloadPluginInput is the input of the unload_plugin tool.
type UnloadPluginInput struct {
	Name string `json:"name" jsonschema:"registered plugin name"`
}

// SpawnOperatorInput is the input of the spawn_operator tool.
type SpawnOperatorInput struct {
	Name     string   `json:"name" jsonschema:"operator id"`
	Position [2]int32 `json:"position" jsonschema:"screen position as [x, y]"`
	Plugin   string   `json:"plugin,omitempty" jsonschema:"plugin to build from; defaults to name"`
}

// RetreatOperatorInput is the input of the retreat_operator tool.
type RetreatOperatorInput struct {
	Name     string   `json:"name" jsonschema:"operator id"`
	Position [2]int32 `json:"position" jsonschema:"screen position as [x, y]"`
}

// ScheduleEventInput is the input of the schedule_event tool.
type ScheduleEventInput struct {
	Event map[string]any `json:"event" jsonschema:"externally tagged event, e.g. {\"MoveTo\":{\"op_id\":\"crow\",\"pos\":[5,5]}}"`
}

// EmptyInput is the input of tools without arguments.
type EmptyInput struct{}

// ListDeliveriesInput is the input of the list_deliveries tool.
type ListDeliveriesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum records to return"`
}

// newMCPServer exposes every command as an MCP tool.
func newMCPServer(executor *command.Executor, journal storage.DeliveryJournal) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: mcpServerName, Version: mcpServerVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "load_plugin", Description: "Loads a plugin module and registers it by name"},
		commandTool(executor, func(in LoadPluginInput) (command.Command, error) {
			return command.LoadPlugin{Name: in.Name, Path: in.Path}, nil
		}))
	mcp.AddTool(server, &mcp.Tool{Name: "unload_plugin", Description: "Deregisters a plugin"},
		commandTool(executor, func(in UnloadPluginInput) (command.Command, error) {
			return command.UnloadPlugin{Name: in.Name}, nil
		}))
	mcp.AddTool(server, &mcp.Tool{Name: "spawn_operator", Description: "Builds an operator from a loaded plugin"},
		commandTool(executor, func(in SpawnOperatorInput) (command.Command, error) {
			return command.SpawnOperator{Name: in.Name, Position: command.Position(in.Position), Plugin: in.Plugin}, nil
		}))
	mcp.AddTool(server, &mcp.Tool{Name: "retreat_operator", Description: "Removes a live operator"},
		commandTool(executor, func(in RetreatOperatorInput) (command.Command, error) {
			return command.RetreatOperator{Name: in.Name, Position: command.Position(in.Position)}, nil
		}))
	mcp.AddTool(server, &mcp.Tool{Name: "schedule_event", Description: "Queues an event for the operator it addresses"},
		commandTool(executor, func(in ScheduleEventInput) (command.Command, error) {
			raw, err := json.Marshal(in.Event)
			if err != nil {
				return nil, err
			}
			var ev event.Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, err
			}
			return command.ScheduleEvent{Event: ev}, nil
		}))
	mcp.AddTool(server, &mcp.Tool{Name: "list_plugins", Description: "Lists registered plugins"},
		commandTool(executor, func(EmptyInput) (command.Command, error) {
			return command.ListPlugins{}, nil
		}))
	mcp.AddTool(server, &mcp.Tool{Name: "list_operators", Description: "Lists live operator ids"},
		commandTool(executor, func(EmptyInput) (command.Command, error) {
			return command.ListOperators{}, nil
		}))

	if journal != nil {
		mcp.AddTool(server, &mcp.Tool{Name: "list_deliveries", Description: "Lists recent event routing outcomes, newest first"},
			listDeliveriesTool(journal))
	}
	return server
}

func commandTool[In any](executor *command.Executor, build func(In) (command.Command, error)) mcp.ToolHandlerFor[In, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		cmd, err := build(in)
		if err != nil {
			return toolResult(command.Error(fmt.Sprintf("Command execution failed: %v", err))), nil, nil
		}
		return toolResult(executor.Execute(ctx, cmd)), nil, nil
	}
}

func toolResult(resp command.Response) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: !resp.OK(),
		Content: []mcp.Content{&mcp.TextContent{Text: resp.Message}},
	}
}

type deliveryView struct {
	OperatorID string `json:"op_id"`
	EventKind  string `json:"kind"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	Body       string `json:"body,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func listDeliveriesTool(journal storage.DeliveryJournal) mcp.ToolHandlerFor[ListDeliveriesInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ListDeliveriesInput) (*mcp.CallToolResult, any, error) {
		limit := in.Limit
		if limit <= 0 {
			limit = defaultDeliveryLimit
		}
		if limit > maxDeliveryLimit {
			limit = maxDeliveryLimit
		}
		records, err := journal.ListDeliveries(ctx, limit)
		if err != nil {
			return toolResult(command.Error(fmt.Sprintf("Failed to list deliveries: %v", err))), nil, nil
		}
		views := make([]deliveryView, 0, len(records))
		for _, r := range records {
			views = append(views, deliveryView{
				OperatorID: r.OperatorID,
				EventKind:  r.EventKind,
				Outcome:    string(r.Outcome),
				Error:      r.LastError,
				Body:       r.Body,
				CreatedAt:  r.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
			})
		}
		body, err := json.Marshal(views)
		if err != nil {
			return nil, nil, err
		}
		return toolResult(command.Success(string(body))), nil, nil
	}
}
