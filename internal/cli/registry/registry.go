package registry

import (
	"fmt"

	"github.com/urfave/cli/v3"
)

type CommandFactory interface {
	CreateCommand() *cli.Command
}

type Registry struct {
	factories map[string]CommandFactory
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]CommandFactory),
	}
}

func (r *Registry) Register(name string, factory CommandFactory) error {
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("command factory %q already registered", name)
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	return nil
}

// CreateCommands builds the commands in registration order.
func (r *Registry) CreateCommands() []*cli.Command {
	commands := make([]*cli.Command, 0, len(r.order))
	for _, name := range r.order {
		commands = append(commands, r.factories[name].CreateCommand())
	}
	return commands
}
