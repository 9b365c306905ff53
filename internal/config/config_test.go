package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches to dir for the duration of the test so that no stray
// config.yaml or .env in the package directory is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("RESUMEMATCH_AI_APIKEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err, "a missing API key must not fail configuration loading")

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, DefaultModel, cfg.AI.Model)
	assert.Equal(t, DefaultBaseURL, cfg.AI.BaseURL)
	assert.Empty(t, cfg.AI.APIKey)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.Equal(t, time.Second, cfg.AI.RetryWaitMin)
	assert.False(t, cfg.AI.CircuitBreaker.Enabled, "exhausted checks must not open a breaker unless configured")
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "disabled", cfg.Server.TLS.Mode)
	assert.Equal(t, "text", cfg.App.DefaultFormat)
}

func TestLoadConfig_EnvAndLegacyKey(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RESUMEMATCH_AI_APIKEY", "")
	t.Setenv("GEMINI_API_KEY", "legacy-key")
	t.Setenv("RESUMEMATCH_AI_MODEL", "gemini-2.0-flash")
	t.Setenv("RESUMEMATCH_SERVER_APIKEYS", "a, b")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.AI.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, []string{"a", "b"}, cfg.Server.APIKeys)
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("RESUMEMATCH_AI_APIKEY", "")
	// godotenv sets variables in the process; make sure they are restored.
	t.Setenv("RESUMEMATCH_APP_LOGLEVEL", "")
	require.NoError(t, os.Unsetenv("RESUMEMATCH_APP_LOGLEVEL"))

	envFile := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESUMEMATCH_APP_LOGLEVEL=debug\n"), 0600))
	t.Setenv("RESUMEMATCH_APP_ENVFILE", envFile)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.True(t, cfg.Observability.ConsoleOutput)
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", t.TempDir())

	yaml := `
ai:
  model: gemini-1.5-pro
  maxRetries: 1
  prompts:
    user: "JD %s / CV %s"
server:
  port: "9999"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600))

	cfg, err := LoadConfigWith(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Model)
	assert.Equal(t, 1, cfg.AI.MaxRetries)
	assert.Equal(t, "JD %s / CV %s", cfg.AI.Prompts.User)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AI: AIConfig{
				Provider:     "gemini",
				Model:        DefaultModel,
				Timeout:      time.Minute,
				MaxRetries:   3,
				RetryWaitMin: time.Second,
				RetryWaitMax: 8 * time.Second,
			},
			Server: ServerConfig{Port: "8080", TLS: TLSConfig{Mode: "disabled"}},
			App: AppConfig{
				DefaultFormat:    "text",
				SupportedFormats: []string{"json", "text"},
				MaxFileSize:      1024,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "valid without api key", mutate: func(*Config) {}, ok: true},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "openai" }},
		{name: "negative retries", mutate: func(c *Config) { c.AI.MaxRetries = -1 }},
		{name: "max wait below min", mutate: func(c *Config) { c.AI.RetryWaitMax = time.Millisecond }},
		{name: "no port", mutate: func(c *Config) { c.Server.Port = "" }},
		{name: "bad default format", mutate: func(c *Config) { c.App.DefaultFormat = "xml" }},
		{name: "zero max file size", mutate: func(c *Config) { c.App.MaxFileSize = 0 }},
		{name: "bad breaker threshold", mutate: func(c *Config) {
			c.AI.CircuitBreaker = CircuitBreakerConfig{Enabled: true, FailureThreshold: 1.5}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
