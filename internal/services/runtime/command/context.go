package command

import (
	"github.com/louisbranch/arkomp/internal/services/runtime/dispatch"
	"github.com/louisbranch/arkomp/internal/services/runtime/module"
	"github.com/louisbranch/arkomp/internal/services/runtime/plugin"
	"github.com/louisbranch/arkomp/internal/services/runtime/roster"
)

// DefaultAnimation is started on every spawned operator unless configured otherwise.
const DefaultAnimation = "Relax"

// Context is the shared state commands run against.
type Context struct {
	Plugins   *plugin.Registry
	Operators *roster.Roster
	Events    dispatch.Sender
	Loader    *module.Loader
	// DefaultAnimation is started on each spawned operator. Empty disables it.
	DefaultAnimation string
}
