package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

type mockCommandFactory struct {
	name string
}

func (m *mockCommandFactory) CreateCommand() *cli.Command {
	return &cli.Command{Name: m.name}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	err := r.Register("stats", &mockCommandFactory{name: "stats"})
	assert.NoError(t, err)

	err = r.Register("stats", &mockCommandFactory{name: "stats"})
	assert.Error(t, err, "duplicate registration must fail")
}

func TestRegistry_CreateCommands_KeepsOrder(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"stats", "state", "check"} {
		assert.NoError(t, r.Register(name, &mockCommandFactory{name: name}))
	}

	commands := r.CreateCommands()
	assert.Len(t, commands, 3)
	assert.Equal(t, "stats", commands[0].Name)
	assert.Equal(t, "state", commands[1].Name)
	assert.Equal(t, "check", commands[2].Name)
}
