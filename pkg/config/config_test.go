package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afr-project/afr/pkg/transparency"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATA_DIR", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "data", cfg.DataDir)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", "/var/lib/afr")
	t.Setenv("REGISTRY_PROFILE", "/etc/afr/profile.yaml")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/var/lib/afr", cfg.DataDir)
	assert.Equal(t, "/etc/afr/profile.yaml", cfg.ProfilePath)
}

func TestDefaultProfile(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, transparency.DefaultRequiredTemplates, p.RequiredTemplates)
	assert.Equal(t, 5, p.Registration.MaxPerWindow)
	assert.Equal(t, time.Minute, p.Registration.Window())
	assert.Equal(t, 50.0, p.RateLimit.RPS)
	assert.Equal(t, 100, p.RateLimit.Burst)
}

func TestLoadProfileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := `
name: eu-strict
required_templates:
  - safety_evaluation
  - red_team_report
  - human_oversight
registration:
  max_per_window: 2
  window_seconds: 300
rate_limit:
  rps: 10
  burst: 20
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "eu-strict", p.Name)
	assert.Equal(t, []transparency.TemplateType{
		transparency.TemplateSafetyEvaluation,
		transparency.TemplateRedTeamReport,
		transparency.TemplateHumanOversight,
	}, p.RequiredTemplates)
	assert.Equal(t, 2, p.Registration.MaxPerWindow)
	assert.Equal(t, 5*time.Minute, p.Registration.Window())
	assert.Equal(t, 10.0, p.RateLimit.RPS)
	assert.Equal(t, 20, p.RateLimit.Burst)
}

func TestLoadProfileRejectsUnknownTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("required_templates: [nonsense]\n"), 0o600))

	_, err := LoadProfile(path)
	assert.Error(t, err)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
