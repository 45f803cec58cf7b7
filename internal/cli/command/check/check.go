package check

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/studioops/scriptpilot/internal/config"
	"github.com/studioops/scriptpilot/internal/notion"
	"github.com/urfave/cli/v3"
)

type CheckCommand struct{}

func NewCheckCommand() *CheckCommand {
	return &CheckCommand{}
}

func (c *CheckCommand) CreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify workspace connectivity for every configured database",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}

			client, err := notion.NewClient(cfg.NotionAPIKey, cfg.RateLimitPerSec, nil)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.Databases))
			for name := range cfg.Databases {
				names = append(names, name)
			}
			sort.Strings(names)

			green := color.New(color.FgGreen)
			red := color.New(color.FgRed)

			failures := 0
			for _, name := range names {
				db := cfg.Databases[name]
				meta, err := client.GetDatabase(ctx, db.ID)
				if err != nil {
					failures++
					_, _ = red.Printf("✗ %s (%s): %v\n", name, db.ID, err)
					continue
				}
				_, _ = green.Printf("✓ %s: %s\n", name, databaseTitle(meta))
			}

			if failures > 0 {
				return fmt.Errorf("%d of %d databases unreachable", failures, len(names))
			}
			fmt.Printf("\nAll %d databases reachable.\n", len(names))
			return nil
		},
	}
}

// databaseTitle digs the plain-text title out of a database object.
func databaseTitle(db map[string]interface{}) string {
	title, ok := db["title"].([]interface{})
	if !ok || len(title) == 0 {
		return "(untitled)"
	}
	first, ok := title[0].(map[string]interface{})
	if !ok {
		return "(untitled)"
	}
	text, ok := first["plain_text"].(string)
	if !ok {
		return "(untitled)"
	}
	return text
}
