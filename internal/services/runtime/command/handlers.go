package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/louisbranch/arkomp/internal/services/runtime/plugin"
	"github.com/louisbranch/arkomp/pkg/operator"
)

func (cmd LoadPlugin) execute(_ context.Context, c *Context) Response {
	p, err := plugin.LoadOperatorPlugin(c.Loader, cmd.Name, cmd.Path)
	if err != nil {
		log.Printf("command: load plugin failed name=%q path=%q err=%v", cmd.Name, cmd.Path, err)
		return Error(fmt.Sprintf("Failed to load plugin: %v", err))
	}
	replaced, err := c.Plugins.Register(p)
	if err != nil {
		_ = p.Close()
		return Error(fmt.Sprintf("Failed to load plugin: %v", err))
	}
	if replaced != nil {
		log.Printf("command: replaced plugin name=%q old_path=%q", cmd.Name, replaced.Path())
		if err := replaced.Close(); err != nil {
			log.Printf("command: close replaced plugin name=%q err=%v", cmd.Name, err)
		}
	}
	log.Printf("command: loaded plugin name=%q path=%q", cmd.Name, cmd.Path)
	return Success("Loaded plugin: " + cmd.Name)
}

func (cmd UnloadPlugin) execute(_ context.Context, c *Context) Response {
	p, err := c.Plugins.Deregister(cmd.Name)
	if err != nil {
		return Error(fmt.Sprintf("Failed to unload plugin: %v", err))
	}
	if err := p.Close(); err != nil {
		log.Printf("command: close plugin name=%q err=%v", cmd.Name, err)
	}
	log.Printf("command: unloaded plugin name=%q", cmd.Name)
	return Success("Unloaded plugin: " + cmd.Name)
}

func (cmd SpawnOperator) execute(_ context.Context, c *Context) Response {
	fail := func(err error) Response {
		log.Printf("command: spawn failed name=%q plugin=%q err=%v", cmd.Name, cmd.PluginName(), err)
		return Error(fmt.Sprintf("Failed to spawn operator %s: %v", cmd.Name, err))
	}

	p, err := c.Plugins.Get(cmd.PluginName())
	if err != nil {
		return fail(err)
	}
	builder, err := plugin.As[*plugin.OperatorPlugin](p)
	if err != nil {
		return fail(err)
	}
	id := cmd.Name
	inst, err := builder.Build(&id)
	if err != nil {
		return fail(err)
	}
	if got := inst.ID(); got != cmd.Name {
		inst.Release()
		return fail(fmt.Errorf("constructor returned operator %q", got))
	}

	// The operator is animated before it becomes visible to the router.
	if c.DefaultAnimation != "" {
		if err := startAnimation(inst, c.DefaultAnimation); err != nil {
			inst.Release()
			return fail(err)
		}
	}
	if c.Operators.Insert(inst) {
		log.Printf("command: replaced operator name=%q", cmd.Name)
	}

	msg := fmt.Sprintf("spawned operator %s at %s", cmd.Name, cmd.Position)
	log.Printf("command: %s", msg)
	return Success(msg)
}

func startAnimation(op operator.Operator, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start animation %s panicked: %v", name, r)
		}
	}()
	op.StartAnimation(name)
	return nil
}

func (cmd RetreatOperator) execute(_ context.Context, c *Context) Response {
	if err := c.Operators.Remove(cmd.Name); err != nil {
		return Error(fmt.Sprintf("operator %s is not loaded", cmd.Name))
	}
	msg := fmt.Sprintf("retreated operator %s at %s", cmd.Name, cmd.Position)
	log.Printf("command: %s", msg)
	return Success(msg)
}

func (cmd ScheduleEvent) execute(_ context.Context, c *Context) Response {
	body, err := json.Marshal(cmd.Event)
	if err != nil {
		return Error(fmt.Sprintf("Failed to schedule event: %v", err))
	}
	if err := c.Events.Send(cmd.Event); err != nil {
		return Error(fmt.Sprintf("Failed to schedule event: %v", err))
	}
	return Success("Scheduled event " + string(body))
}

func (ListPlugins) execute(_ context.Context, c *Context) Response {
	plugins := c.Plugins.List()
	infos := make([]plugin.Info, 0, len(plugins))
	for _, p := range plugins {
		infos = append(infos, plugin.Describe(p))
	}
	body, err := json.Marshal(infos)
	if err != nil {
		return Error(fmt.Sprintf("Failed to list plugins: %v", err))
	}
	return Success(string(body))
}

func (ListOperators) execute(_ context.Context, c *Context) Response {
	body, err := json.Marshal(c.Operators.IDs())
	if err != nil {
		return Error(fmt.Sprintf("Failed to list operators: %v", err))
	}
	return Success(string(body))
}
