package cost

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/studioops/scriptpilot/internal/errors"
)

// historyLimit bounds the on-disk entry history. Oldest entries drop first.
const historyLimit = 1000

// Limits are the four budget thresholds, fixed for the tracker's lifetime.
// Soft limits only log a warning; hard limits stop further generation.
type Limits struct {
	DailySoft   float64
	DailyHard   float64
	MonthlySoft float64
	MonthlyHard float64
}

type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	CostUSD   float64                `json:"cost_usd"`
	Skill     string                 `json:"skill"`
	Workflow  string                 `json:"workflow,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type snapshot struct {
	Daily       map[string]float64 `json:"daily"`
	Monthly     map[string]float64 `json:"monthly"`
	PerSkill    map[string]float64 `json:"per_skill"`
	PerWorkflow map[string]float64 `json:"per_workflow"`
	History     []Entry            `json:"history"`
}

// Tracker is the single source of truth for generation spend. The whole
// snapshot lives in one JSON file, loaded at construction and rewritten
// after every AddCost. Single-process, single-writer only: concurrent
// writers race with last-writer-wins.
type Tracker struct {
	path   string
	limits Limits
	costs  snapshot
	now    func() time.Time
}

func NewTracker(path string, limits Limits) (*Tracker, error) {
	t := &Tracker{
		path:   path,
		limits: limits,
		now:    time.Now,
	}

	if err := t.load(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.costs = snapshot{
				Daily:       map[string]float64{},
				Monthly:     map[string]float64{},
				PerSkill:    map[string]float64{},
				PerWorkflow: map[string]float64{},
				History:     []Entry{},
			}
			return nil
		}
		return fmt.Errorf("error reading cost file: %w", err)
	}

	if err := json.Unmarshal(data, &t.costs); err != nil {
		return fmt.Errorf("error deserializing cost file: %w", err)
	}
	if t.costs.Daily == nil {
		t.costs.Daily = map[string]float64{}
	}
	if t.costs.Monthly == nil {
		t.costs.Monthly = map[string]float64{}
	}
	if t.costs.PerSkill == nil {
		t.costs.PerSkill = map[string]float64{}
	}
	if t.costs.PerWorkflow == nil {
		t.costs.PerWorkflow = map[string]float64{}
	}

	return nil
}

func (t *Tracker) save() error {
	data, err := json.MarshalIndent(t.costs, "", "  ")
	if err != nil {
		return fmt.Errorf("error serializing costs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("error creating state directory: %w", err)
	}

	if err := os.WriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("error saving costs: %w", err)
	}

	return nil
}

// AddCost records a cost entry against today, this month, the skill and the
// optional workflow, persists the snapshot, then re-evaluates the limits.
// A BudgetExceededError from the post-check means the entry was recorded
// but the next attempt must not run.
func (t *Tracker) AddCost(costUSD float64, skill, workflow string, details map[string]interface{}) error {
	now := t.now()
	day := now.Format("2006-01-02")
	month := now.Format("2006-01")

	t.costs.Daily[day] += costUSD
	t.costs.Monthly[month] += costUSD
	t.costs.PerSkill[skill] += costUSD
	if workflow != "" {
		t.costs.PerWorkflow[workflow] += costUSD
	}

	t.costs.History = append(t.costs.History, Entry{
		Timestamp: now,
		CostUSD:   costUSD,
		Skill:     skill,
		Workflow:  workflow,
		Details:   details,
	})
	if len(t.costs.History) > historyLimit {
		t.costs.History = t.costs.History[len(t.costs.History)-historyLimit:]
	}

	if err := t.save(); err != nil {
		return err
	}

	slog.Debug("cost recorded",
		"cost_usd", costUSD,
		"skill", skill,
		"workflow", workflow,
		"day_cost", t.costs.Daily[day])

	return t.CheckLimits()
}

// CheckLimits returns a BudgetExceededError once the day or month total
// reaches its hard limit. Callers must check before committing to a paid
// call as well as after recording it: the post-check can only stop the next
// attempt, not the one that just ran over. Soft limits log a warning and
// never fail.
func (t *Tracker) CheckLimits() error {
	now := t.now()
	dayCost := t.costs.Daily[now.Format("2006-01-02")]
	monthCost := t.costs.Monthly[now.Format("2006-01")]

	if dayCost >= t.limits.DailyHard {
		return errors.NewBudgetExceededError(
			fmt.Sprintf("daily hard limit exceeded: $%.2f / $%.2f", dayCost, t.limits.DailyHard),
			dayCost, monthCost)
	}

	if monthCost >= t.limits.MonthlyHard {
		return errors.NewBudgetExceededError(
			fmt.Sprintf("monthly hard limit exceeded: $%.2f / $%.2f", monthCost, t.limits.MonthlyHard),
			dayCost, monthCost)
	}

	if dayCost >= t.limits.DailySoft {
		slog.Warn("daily soft limit exceeded",
			"day_cost", fmt.Sprintf("%.2f", dayCost),
			"limit", fmt.Sprintf("%.2f", t.limits.DailySoft))
	}

	if monthCost >= t.limits.MonthlySoft {
		slog.Warn("monthly soft limit exceeded",
			"month_cost", fmt.Sprintf("%.2f", monthCost),
			"limit", fmt.Sprintf("%.2f", t.limits.MonthlySoft))
	}

	return nil
}

// TodayCost returns the total spent today.
func (t *Tracker) TodayCost() float64 {
	return t.costs.Daily[t.now().Format("2006-01-02")]
}

// MonthCost returns the total spent this month.
func (t *Tracker) MonthCost() float64 {
	return t.costs.Monthly[t.now().Format("2006-01")]
}

// SkillCost returns the cumulative cost for a skill.
func (t *Tracker) SkillCost(skill string) float64 {
	return t.costs.PerSkill[skill]
}

// WorkflowCost returns the cumulative cost for a workflow.
func (t *Tracker) WorkflowCost(workflow string) float64 {
	return t.costs.PerWorkflow[workflow]
}

// History returns the retained entries, oldest first.
func (t *Tracker) History() []Entry {
	out := make([]Entry, len(t.costs.History))
	copy(out, t.costs.History)
	return out
}

type PeriodSummary struct {
	Cost      float64
	SoftLimit float64
	HardLimit float64
	Remaining float64
}

type LabelCost struct {
	Label   string
	CostUSD float64
}

type Summary struct {
	Today        PeriodSummary
	Month        PeriodSummary
	TopSkills    []LabelCost
	TopWorkflows []LabelCost
}

// GetSummary returns both period totals with their limits and headroom,
// plus the five most expensive skills and workflows.
func (t *Tracker) GetSummary() Summary {
	todayCost := t.TodayCost()
	monthCost := t.MonthCost()

	return Summary{
		Today: PeriodSummary{
			Cost:      todayCost,
			SoftLimit: t.limits.DailySoft,
			HardLimit: t.limits.DailyHard,
			Remaining: t.limits.DailyHard - todayCost,
		},
		Month: PeriodSummary{
			Cost:      monthCost,
			SoftLimit: t.limits.MonthlySoft,
			HardLimit: t.limits.MonthlyHard,
			Remaining: t.limits.MonthlyHard - monthCost,
		},
		TopSkills:    topFive(t.costs.PerSkill),
		TopWorkflows: topFive(t.costs.PerWorkflow),
	}
}

// topFive sorts by cost descending, ties broken by label so the order is
// stable across runs.
func topFive(totals map[string]float64) []LabelCost {
	all := make([]LabelCost, 0, len(totals))
	for label, cost := range totals {
		all = append(all, LabelCost{Label: label, CostUSD: cost})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CostUSD != all[j].CostUSD {
			return all[i].CostUSD > all[j].CostUSD
		}
		return all[i].Label < all[j].Label
	})

	if len(all) > 5 {
		all = all[:5]
	}
	return all
}
