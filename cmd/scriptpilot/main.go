package main

import (
	"context"
	"log"
	"os"

	"github.com/studioops/scriptpilot/internal/cli/command/check"
	"github.com/studioops/scriptpilot/internal/cli/command/state"
	"github.com/studioops/scriptpilot/internal/cli/command/stats"
	"github.com/studioops/scriptpilot/internal/cli/registry"
	"github.com/studioops/scriptpilot/internal/logger"
	"github.com/studioops/scriptpilot/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Error initializing the cli: %v", err)
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func initializeApp() (*cli.Command, error) {
	registerCommand := registry.NewRegistry()

	if err := registerCommand.Register("stats", stats.NewStatsCommand()); err != nil {
		return nil, err
	}
	if err := registerCommand.Register("state", state.NewStateCommand()); err != nil {
		return nil, err
	}
	if err := registerCommand.Register("check", check.NewCheckCommand()); err != nil {
		return nil, err
	}

	return &cli.Command{
		Name:        "scriptpilot",
		Usage:       "Cost-governed pipeline tooling for workspace and AI APIs",
		Version:     version.Version,
		Description: "Inspect AI spend, manage workflow state and verify workspace connectivity.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "config/config.yaml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Include source locations in log output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger.Initialize(cmd.Bool("debug"), cmd.Bool("verbose"))
			return ctx, nil
		},
		Commands:              registerCommand.CreateCommands(),
		EnableShellCompletion: true,
	}, nil
}
