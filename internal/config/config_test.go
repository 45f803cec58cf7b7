package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/studioops/scriptpilot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const sampleConfig = `
notion_api_key: secret-notion
gemini_api_key: secret-gemini
rate_limit_per_sec: 2.5
cost_limits:
  daily_soft: 5.00
  daily_hard: 20.00
  monthly_soft: 100.00
  monthly_hard: 500.00
models:
  fast: gemini-2.5-flash
  quality: gemini-2.5-pro
skill_model_mapping:
  S05: fast
  S15: quality
databases:
  production_tracker:
    id: db-prod-123
    name: Production Tracker
  viral_dna:
    id: db-dna-456
    name: Viral DNA
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))

	require.NoError(t, err)
	assert.Equal(t, "secret-notion", cfg.NotionAPIKey)
	assert.Equal(t, "secret-gemini", cfg.GeminiAPIKey)
	assert.Equal(t, 2.5, cfg.RateLimitPerSec)
	assert.Equal(t, 20.00, cfg.CostLimits.DailyHard)
	assert.Equal(t, "gemini-2.5-flash", cfg.Models["fast"])
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_NOTION_KEY", "from-env")

	cfg, err := Load(writeConfig(t, "notion_api_key: ${TEST_NOTION_KEY}\n"))

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.NotionAPIKey)
}

func TestLoad_MissingEnvVarsListed(t *testing.T) {
	content := "notion_api_key: ${SP_TEST_MISSING_B}\ngemini_api_key: ${SP_TEST_MISSING_A}\n"

	_, err := Load(writeConfig(t, content))

	require.Error(t, err)
	assert.ErrorContains(t, err, "missing environment variables")
	assert.ErrorContains(t, err, "SP_TEST_MISSING_A, SP_TEST_MISSING_B")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "notion_api_key: k\n"))

	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.RateLimitPerSec)
	assert.Equal(t, "state", cfg.StateDir)
	assert.Equal(t, 5.00, cfg.CostLimits.DailySoft)
	assert.Equal(t, 20.00, cfg.CostLimits.DailyHard)
	assert.Equal(t, 100.00, cfg.CostLimits.MonthlySoft)
	assert.Equal(t, 500.00, cfg.CostLimits.MonthlyHard)
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_HardBelowSoftRejected(t *testing.T) {
	content := `
cost_limits:
  daily_soft: 30.00
  daily_hard: 10.00
`
	_, err := Load(writeConfig(t, content))

	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "cost_limits.daily_hard", valErr.Field)
}

func TestConfig_ModelForSkill(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	model, err := cfg.ModelForSkill("S05")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", model)

	model, err = cfg.ModelForSkill("S15")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", model)
}

func TestConfig_ModelForSkill_UnknownListsAlternatives(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	_, err = cfg.ModelForSkill("S99")

	require.Error(t, err)
	assert.ErrorContains(t, err, `skill "S99" not found`)
	assert.ErrorContains(t, err, "S05, S15")
}

func TestConfig_ModelForSkill_UnmappedTier(t *testing.T) {
	content := `
models:
  fast: gemini-2.5-flash
skill_model_mapping:
  S05: premium
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)

	_, err = cfg.ModelForSkill("S05")

	require.Error(t, err)
	assert.ErrorContains(t, err, `model tier "premium"`)
	assert.ErrorContains(t, err, "fast")
}

func TestConfig_Database(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	db, err := cfg.Database("viral_dna")
	require.NoError(t, err)
	assert.Equal(t, "db-dna-456", db.ID)
	assert.Equal(t, "Viral DNA", db.Name)

	_, err = cfg.Database("nonexistent")
	require.Error(t, err)
	assert.ErrorContains(t, err, "production_tracker, viral_dna")
}

func TestConfig_DatabaseIDs(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	ids := cfg.DatabaseIDs()
	assert.Equal(t, map[string]string{
		"production_tracker": "db-prod-123",
		"viral_dna":          "db-dna-456",
	}, ids)
}
