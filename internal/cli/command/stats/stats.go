package stats

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/studioops/scriptpilot/internal/config"
	"github.com/studioops/scriptpilot/internal/cost"
	"github.com/urfave/cli/v3"
)

type StatsCommand struct{}

func NewStatsCommand() *StatsCommand {
	return &StatsCommand{}
}

func (c *StatsCommand) CreateCommand() *cli.Command {
	return &cli.Command{
		Name:    "stats",
		Aliases: []string{"cost"},
		Usage:   "Show AI spend against the configured budgets",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}

			tracker, err := cost.NewTracker(filepath.Join(cfg.StateDir, "ai_costs.json"), cost.Limits{
				DailySoft:   cfg.CostLimits.DailySoft,
				DailyHard:   cfg.CostLimits.DailyHard,
				MonthlySoft: cfg.CostLimits.MonthlySoft,
				MonthlyHard: cfg.CostLimits.MonthlyHard,
			})
			if err != nil {
				return fmt.Errorf("error opening cost ledger: %w", err)
			}

			printSummary(tracker.GetSummary())
			return nil
		},
	}
}

func printSummary(summary cost.Summary) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Println("\nAI cost summary")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	printPeriod("Today", summary.Today)
	printPeriod("This month", summary.Month)

	if len(summary.TopSkills) > 0 {
		_, _ = cyan.Println("\nTop skills")
		for _, lc := range summary.TopSkills {
			fmt.Printf("  %-20s %s\n", lc.Label, yellow.Sprintf("$%.4f", lc.CostUSD))
		}
	}
	if len(summary.TopWorkflows) > 0 {
		_, _ = cyan.Println("\nTop workflows")
		for _, lc := range summary.TopWorkflows {
			fmt.Printf("  %-20s %s\n", lc.Label, yellow.Sprintf("$%.4f", lc.CostUSD))
		}
	}
	fmt.Println()
}

func printPeriod(label string, p cost.PeriodSummary) {
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	costStr := yellow.Sprintf("$%.2f", p.Cost)
	if p.Cost >= p.SoftLimit {
		costStr = red.Sprintf("$%.2f", p.Cost)
	}

	fmt.Printf("%-12s %s of $%.2f hard limit (soft $%.2f, remaining $%.2f)\n",
		label+":", costStr, p.HardLimit, p.SoftLimit, p.Remaining)
}
