package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "rod", cfg.Browser.Driver)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.Equal(t, time.Second, cfg.Executor.StepDelay)
	assert.Equal(t, 5*time.Second, cfg.Executor.WaitTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Executor.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Export.Debounce)
	assert.Equal(t, 50, cfg.Export.BatchSize)
	assert.Equal(t, 3, cfg.Export.RetryAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Export.SyncInterval)
	assert.Equal(t, 3, cfg.Parallel.Retries)
	assert.True(t, len(cfg.Browser.UserDataDir) > 0 && cfg.Browser.UserDataDir[0] == '/')
}

func TestParseConfigOverrides(t *testing.T) {
	raw := []byte(`{
		"logger": {"level": "debug"},
		"browser": {"driver": "chromedp", "headless": true},
		"executor": {"step_delay": "250ms"},
		"export": {"batch_size": 10}
	}`)
	cfg, err := ParseConfig(raw)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "chromedp", cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Executor.StepDelay)
	assert.Equal(t, 10, cfg.Export.BatchSize)
	// 未覆盖的项保留默认值
	assert.Equal(t, 3, cfg.Export.RetryAttempts)
}

func TestParseConfigEnvOverride(t *testing.T) {
	t.Setenv("LEADAGENT_LLM_PROVIDER", "anthropic")
	t.Setenv("LEADAGENT_LLM_API_KEY", "sk-test")

	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := ParseConfig(nil)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad driver", func(c *Config) { c.Browser.Driver = "selenium" }, "browser.driver"},
		{"redis without addr", func(c *Config) { c.Store.Kind = "redis"; c.Store.RedisAddr = "" }, "store.redis_addr"},
		{"unknown store", func(c *Config) { c.Store.Kind = "etcd" }, "store.kind"},
		{"es without address", func(c *Config) { c.Leads.Kind = "elasticsearch"; c.Leads.Address = "" }, "leads.address"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gemini" }, "llm.provider"},
		{"zero batch", func(c *Config) { c.Export.BatchSize = 0 }, "export.batch_size"},
		{"zero pool", func(c *Config) { c.Parallel.PoolSize = 0 }, "parallel.pool_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeSettings(t *testing.T) {
	t.Run("empty keeps defaults", func(t *testing.T) {
		s, err := MergeSettings(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})

	t.Run("stored values override", func(t *testing.T) {
		s, err := MergeSettings([]byte(`{"wholeWord": true, "scanIntervalMs": 5000, "scanMode": "manual"}`))
		require.NoError(t, err)
		assert.True(t, s.WholeWord)
		assert.Equal(t, 5*time.Second, s.ScanInterval())
		assert.Equal(t, ScanModeManual, s.ScanMode)
		assert.True(t, s.AutoSync)
		assert.Equal(t, 6, s.AutoScrollCycles)
		assert.Equal(t, "openrouter/openai/gpt-4o-mini", s.OpenRouterModel)
	})

	t.Run("invalid json falls back", func(t *testing.T) {
		s, err := MergeSettings([]byte(`{bad`))
		assert.Error(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})
}
