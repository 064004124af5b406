package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory so no user config is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("DASHSCOPE_API_KEY", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Relay.Port)
	assert.Equal(t, int64(10<<20), cfg.Relay.MaxBodyBytes)
	assert.Equal(t, 60*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, "qwen", cfg.LLM.Provider)
	assert.Equal(t, ModeRelay, cfg.LLM.Mode)
	assert.Equal(t, 100, cfg.LLM.Quota)
	assert.Equal(t, 10, cfg.LLM.LowWater)
	assert.Equal(t, 4000, cfg.LLM.MaxChars)
	assert.Empty(t, cfg.LLM.SharedKeys.Qwen)
	assert.Empty(t, cfg.LLM.SharedKeys.DeepSeek)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Env(t *testing.T) {
	isolate(t)
	t.Setenv("FILETRIAGE_LLM_QUOTA", "5")
	t.Setenv("FILETRIAGE_LLM_PROVIDER", "deepseek")
	t.Setenv("DEEPSEEK_API_KEY", "sk-deepseek")
	t.Setenv("DASHSCOPE_API_KEY", "sk-dashscope")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.LLM.Quota)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "sk-deepseek", cfg.APIKey("deepseek"))
	assert.Equal(t, "sk-dashscope", cfg.APIKey("qwen"))
	assert.Empty(t, cfg.APIKey("gemini"))
}

func TestLoadConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
relay:
  port: "8088"
  base_path: /api
llm:
  mode: direct
  quota: 20
  shared_keys:
    qwen: shared-qwen
categories:
  ebook: [epub, mobi]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Relay.Port)
	assert.Equal(t, "/api", cfg.Relay.BasePath)
	assert.Equal(t, ModeDirect, cfg.LLM.Mode)
	assert.Equal(t, 20, cfg.LLM.Quota)
	assert.Equal(t, "shared-qwen", cfg.LLM.SharedKeys.Qwen)
	assert.Equal(t, []string{"epub", "mobi"}, cfg.Categories["ebook"])
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 4000, cfg.LLM.MaxChars)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFile_Missing(t *testing.T) {
	isolate(t)
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	isolate(t)

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "Bad port", mutate: func(c *Config) { c.Relay.Port = "http" }, wantErr: "relay.port"},
		{name: "Relative base path", mutate: func(c *Config) { c.Relay.BasePath = "api" }, wantErr: "relay.base_path"},
		{name: "Rate limit without burst", mutate: func(c *Config) { c.Relay.RateLimit = 2; c.Relay.Burst = 0 }, wantErr: "relay.burst"},
		{name: "Unknown provider", mutate: func(c *Config) { c.LLM.Provider = "gemini" }, wantErr: "llm.provider"},
		{name: "Unknown mode", mutate: func(c *Config) { c.LLM.Mode = "carrier-pigeon" }, wantErr: "llm.mode"},
		{name: "Relay mode without URL", mutate: func(c *Config) { c.LLM.RelayURL = "" }, wantErr: "llm.relay_url"},
		{name: "Zero quota", mutate: func(c *Config) { c.LLM.Quota = 0 }, wantErr: "llm.quota"},
		{name: "Low water above quota", mutate: func(c *Config) { c.LLM.LowWater = 500 }, wantErr: "llm.low_water"},
		{name: "Empty category", mutate: func(c *Config) { c.Categories = map[string][]string{"ebook": nil} }, wantErr: "no extensions"},
		{name: "Bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tc.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.APIKeys.DeepSeek = "sk-1234567890abcdef"
	cfg.LLM.APIKeys.Qwen = "short"
	cfg.LLM.SharedKeys.Qwen = ""

	r := cfg.Redacted()
	assert.Equal(t, "sk-****ef", r.LLM.APIKeys.DeepSeek)
	assert.Equal(t, "****", r.LLM.APIKeys.Qwen)
	assert.Empty(t, r.LLM.SharedKeys.Qwen)
	// the original is left alone
	assert.Equal(t, "sk-1234567890abcdef", cfg.LLM.APIKeys.DeepSeek)
}

func TestLoadPromptContent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	content, err := LoadPromptContent("")
	require.NoError(t, err)
	assert.Empty(t, content)

	abs := filepath.Join(t.TempDir(), "label.txt")
	require.NoError(t, os.WriteFile(abs, []byte("Answer with one word."), 0o600))
	content, err = LoadPromptContent(abs)
	require.NoError(t, err)
	assert.Equal(t, "Answer with one word.", content)

	dir := filepath.Join(home, defaultPromptDir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.txt"), []byte("Be brief."), 0o600))
	content, err = LoadPromptContent("short.txt")
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", content)

	_, err = LoadPromptContent("missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt file not found at default location")
}
