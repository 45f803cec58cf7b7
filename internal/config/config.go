package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/studioops/scriptpilot/internal/errors"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		NotionAPIKey    string  `yaml:"notion_api_key"`
		GeminiAPIKey    string  `yaml:"gemini_api_key"`
		RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
		StateDir        string  `yaml:"state_dir"`

		CostLimits  CostLimits          `yaml:"cost_limits"`
		Models      map[string]string   `yaml:"models"`
		SkillModels map[string]string   `yaml:"skill_model_mapping"`
		Databases   map[string]Database `yaml:"databases"`
	}

	// CostLimits are the budget thresholds in USD.
	CostLimits struct {
		DailySoft   float64 `yaml:"daily_soft"`
		DailyHard   float64 `yaml:"daily_hard"`
		MonthlySoft float64 `yaml:"monthly_soft"`
		MonthlyHard float64 `yaml:"monthly_hard"`
	}

	Database struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	}
)

const (
	defaultRateLimitPerSec = 2.5
	defaultStateDir        = "state"

	defaultDailySoft   = 5.00
	defaultDailyHard   = 20.00
	defaultMonthlySoft = 100.00
	defaultMonthlyHard = 500.00
)

// Load reads a YAML config file, expanding ${ENV_VAR} references from the
// environment. References to unset variables are a fail-fast error naming
// every missing variable.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	expanded, err := expandEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func expandEnv(content string) (string, error) {
	var missing []string

	expanded := os.Expand(content, func(name string) string {
		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return value
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	return expanded, nil
}

func (c *Config) applyDefaults() {
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = defaultRateLimitPerSec
	}
	if c.StateDir == "" {
		c.StateDir = defaultStateDir
	}
	if c.CostLimits.DailySoft <= 0 {
		c.CostLimits.DailySoft = defaultDailySoft
	}
	if c.CostLimits.DailyHard <= 0 {
		c.CostLimits.DailyHard = defaultDailyHard
	}
	if c.CostLimits.MonthlySoft <= 0 {
		c.CostLimits.MonthlySoft = defaultMonthlySoft
	}
	if c.CostLimits.MonthlyHard <= 0 {
		c.CostLimits.MonthlyHard = defaultMonthlyHard
	}
}

func (c *Config) validate() error {
	if c.CostLimits.DailyHard < c.CostLimits.DailySoft {
		return errors.NewValidationError("cost_limits.daily_hard", "must be at least the daily soft limit")
	}
	if c.CostLimits.MonthlyHard < c.CostLimits.MonthlySoft {
		return errors.NewValidationError("cost_limits.monthly_hard", "must be at least the monthly soft limit")
	}
	for tier, model := range c.Models {
		if model == "" {
			return errors.NewValidationError("models."+tier, "model ID must not be empty")
		}
	}
	return nil
}

// ModelForSkill resolves a skill ID to a model ID via the tier mapping.
// Unknown skills and unmapped tiers fail with the valid alternatives listed,
// so a typo is diagnosable from the error alone.
func (c *Config) ModelForSkill(skill string) (string, error) {
	tier, ok := c.SkillModels[skill]
	if !ok {
		return "", errors.NewAppError(errors.TypeConfiguration,
			fmt.Sprintf("skill %q not found in skill_model_mapping (available: %s)",
				skill, strings.Join(sortedKeys(c.SkillModels), ", ")), nil).
			WithSuggestion("Add the skill to skill_model_mapping in config.yaml")
	}

	model, ok := c.Models[tier]
	if !ok {
		return "", errors.NewAppError(errors.TypeConfiguration,
			fmt.Sprintf("model tier %q for skill %q not found in models (available: %s)",
				tier, skill, strings.Join(sortedKeys(c.Models), ", ")), nil).
			WithSuggestion("Add the tier to models in config.yaml")
	}

	return model, nil
}

// Database resolves a logical database name to its configuration, failing
// with the valid alternatives listed.
func (c *Config) Database(name string) (Database, error) {
	db, ok := c.Databases[name]
	if !ok {
		return Database{}, errors.NewAppError(errors.TypeConfiguration,
			fmt.Sprintf("database %q not found in config (available: %s)",
				name, strings.Join(sortedKeys(c.Databases), ", ")), nil).
			WithSuggestion("Add the database to databases in config.yaml")
	}
	return db, nil
}

// DatabaseIDs returns all configured database IDs keyed by logical name.
func (c *Config) DatabaseIDs() map[string]string {
	ids := make(map[string]string, len(c.Databases))
	for name, db := range c.Databases {
		ids[name] = db.ID
	}
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
