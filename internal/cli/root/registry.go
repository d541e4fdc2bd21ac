package root

import (
	"fmt"
	"strings"

	"github.com/regenrek/panelctx/internal/cli/spec"
)

// Handler executes a command.
type Handler func(ctx CommandContext) error

// Registry maps command IDs to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a command ID. Empty IDs and nil handlers are ignored.
func (r *Registry) Register(id string, handler Handler) {
	if r == nil || id == "" || handler == nil {
		return
	}
	r.handlers[id] = handler
}

func (r *Registry) HandlerFor(id string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[id]
	return h, ok
}

// EnsureHandlers reports every leaf command without a handler.
func (r *Registry) EnsureHandlers(doc *spec.Spec) error {
	if r == nil || doc == nil {
		return nil
	}
	var missing []string
	for _, cmd := range doc.AllCommands() {
		if len(cmd.Subcommands) > 0 {
			continue
		}
		if _, ok := r.handlers[cmd.ID]; !ok {
			missing = append(missing, cmd.ID)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing CLI handler for %s", strings.Join(missing, ", "))
	}
	return nil
}
