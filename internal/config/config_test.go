package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 25, cfg.Engine.Finance.AmortizationYears)
	assert.Equal(t, 1.10, cfg.Engine.Scenarios.Worst.CostFactor)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
log:
  level: debug
quota:
  timeout: 750ms
  default_included: 5
engine:
  finance:
    amortization_years: 30
    hold_period_years: 7
    exit_cap_rate: 0.07
  scenarios:
    best: {cost: 0.9, revenue: 1.1}
    worst: {cost: 1.2, revenue: 0.8}
`)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("QUOTA_DEFAULT_INCLUDED", "9")
	t.Setenv("TAXONOMY_PATH", "/etc/specsharp/taxonomy.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 750*time.Millisecond, cfg.Quota.Timeout)
	assert.Equal(t, 9, cfg.Quota.DefaultIncluded)
	assert.Equal(t, 30, cfg.Engine.Finance.AmortizationYears)
	assert.Equal(t, 7, cfg.Engine.Finance.HoldPeriodYears)
	assert.Equal(t, 0.07, cfg.Engine.Finance.ExitCapRate)
	assert.Equal(t, 0.8, cfg.Engine.Scenarios.Worst.RevenueFactor)
	assert.Equal(t, "/etc/specsharp/taxonomy.yaml", cfg.Taxonomy.Path)
	// Untouched sections keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown field", body: "http:\n  port: 80\n"},
		{name: "bad level", body: "log:\n  level: loud\n"},
		{name: "bad amortization", body: "engine:\n  finance:\n    amortization_years: 0\n    hold_period_years: 10\n"},
		{name: "bad scenario", body: "engine:\n  scenarios:\n    worst: {cost: 0, revenue: 0.9}\n"},
		{name: "short secret in production", body: "env: production\n", env: map[string]string{"JWT_SECRET": "short"}},
		{name: "bad quota env", body: "", env: map[string]string{"QUOTA_DEFAULT_INCLUDED": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestStorageEnabled(t *testing.T) {
	s := Default().Storage
	assert.False(t, s.Enabled())
	s.Endpoint, s.Bucket = "https://r2.example.com", "taxonomy"
	assert.True(t, s.Enabled())
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Addr, cfg.HTTP.Addr)
}
