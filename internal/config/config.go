package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeRelay  = "relay"
	ModeDirect = "direct"
)

type Config struct {
	Relay struct {
		Addr         string        `mapstructure:"addr"`
		Port         string        `mapstructure:"port"`
		BasePath     string        `mapstructure:"base_path"`
		RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
		Burst        int           `mapstructure:"burst"`
		MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
		Timeout      time.Duration `mapstructure:"timeout"` // upstream call timeout, 0 means none
		Upstreams    struct {
			Qwen     string `mapstructure:"qwen"`
			DeepSeek string `mapstructure:"deepseek"`
		} `mapstructure:"upstreams"`
	} `mapstructure:"relay"`

	LLM struct {
		Provider   string        `mapstructure:"provider"`
		Model      string        `mapstructure:"model"`
		Mode       string        `mapstructure:"mode"` // "relay" or "direct"
		RelayURL   string        `mapstructure:"relay_url"`
		Quota      int           `mapstructure:"quota"`
		LowWater   int           `mapstructure:"low_water"`
		MaxChars   int           `mapstructure:"max_chars"`
		Timeout    time.Duration `mapstructure:"timeout"`
		PromptFile string        `mapstructure:"prompt_file"`
		APIKeys    struct {
			Qwen     string `mapstructure:"qwen"`
			DeepSeek string `mapstructure:"deepseek"`
		} `mapstructure:"api_keys"`
		// SharedKeys are deployment credentials used when the caller has none.
		SharedKeys struct {
			Qwen     string `mapstructure:"qwen"`
			DeepSeek string `mapstructure:"deepseek"`
		} `mapstructure:"shared_keys"`
	} `mapstructure:"llm"`

	// Categories extends the extension table: label -> extensions.
	Categories map[string][]string `mapstructure:"categories"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.addr", "localhost")
	v.SetDefault("relay.port", "9000")
	v.SetDefault("relay.base_path", "")
	v.SetDefault("relay.rate_limit", 0)
	v.SetDefault("relay.burst", 10)
	v.SetDefault("relay.max_body_bytes", 10<<20)
	v.SetDefault("relay.timeout", 60*time.Second)
	v.SetDefault("relay.upstreams.qwen", "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation")
	v.SetDefault("relay.upstreams.deepseek", "https://api.deepseek.com/v1/chat/completions")

	v.SetDefault("llm.provider", "qwen")
	v.SetDefault("llm.mode", ModeRelay)
	v.SetDefault("llm.relay_url", "http://localhost:9000")
	v.SetDefault("llm.quota", 100)
	v.SetDefault("llm.low_water", 10)
	v.SetDefault("llm.max_chars", 4000)
	v.SetDefault("llm.timeout", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory or
// $HOME/.config/filetriage, overlaid with FILETRIAGE_* environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file path. An empty
// path searches the default locations.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/filetriage")
	}

	v.SetEnvPrefix("FILETRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys under their customary names.
	v.BindEnv("llm.api_keys.deepseek", "FILETRIAGE_LLM_API_KEYS_DEEPSEEK", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.api_keys.qwen", "FILETRIAGE_LLM_API_KEYS_QWEN", "DASHSCOPE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when searching; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

// APIKey returns the configured key for provider, or "".
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "qwen":
		return c.LLM.APIKeys.Qwen
	case "deepseek":
		return c.LLM.APIKeys.DeepSeek
	}
	return ""
}

// Redacted returns a copy safe to print: every credential is masked.
func (c *Config) Redacted() Config {
	out := *c
	out.LLM.APIKeys.Qwen = mask(c.LLM.APIKeys.Qwen)
	out.LLM.APIKeys.DeepSeek = mask(c.LLM.APIKeys.DeepSeek)
	out.LLM.SharedKeys.Qwen = mask(c.LLM.SharedKeys.Qwen)
	out.LLM.SharedKeys.DeepSeek = mask(c.LLM.SharedKeys.DeepSeek)
	return out
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "****" + key[len(key)-2:]
}
