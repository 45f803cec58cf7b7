package state

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/studioops/scriptpilot/internal/config"
	"github.com/studioops/scriptpilot/internal/state"
	"github.com/urfave/cli/v3"
)

type StateCommand struct{}

func NewStateCommand() *StateCommand {
	return &StateCommand{}
}

func (c *StateCommand) CreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Inspect and reset workflow state",
		Commands: []*cli.Command{
			c.listCommand(),
			c.clearCommand(),
		},
	}
}

func (c *StateCommand) listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List processed entries per database",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			databases, err := store.Databases()
			if err != nil {
				return err
			}
			if len(databases) == 0 {
				fmt.Println("No processed entries recorded.")
				return nil
			}

			cyan := color.New(color.FgCyan, color.Bold)
			for _, db := range databases {
				entries, err := store.ProcessedEntries(db)
				if err != nil {
					return err
				}
				_, _ = cyan.Printf("%s (%d entries)\n", db, len(entries))
				if cmd.Bool("ids") {
					for _, id := range entries {
						fmt.Printf("  %s\n", id)
					}
				}
			}
			return nil
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "ids",
				Usage: "Print the individual entry IDs",
			},
		},
	}
}

func (c *StateCommand) clearCommand() *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Clear processed entries for a database, or everything",
		ArgsUsage: "[database]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}

			dbName := cmd.Args().First()
			if err := store.ClearProcessedEntries(dbName); err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			if dbName == "" {
				_, _ = green.Println("Cleared processed entries for all databases.")
			} else {
				_, _ = green.Printf("Cleared processed entries for %s.\n", dbName)
			}
			return nil
		},
	}
}

func openStore(cmd *cli.Command) (*state.Store, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return state.NewStore(cfg.StateDir)
}
