package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate checks the fields each command depends on. It does not require
// API keys: a missing key is reported per file by the classifier.
func (c *Config) Validate() error {
	// Relay
	if c.Relay.Port == "" {
		return errors.New("relay.port is required")
	}
	if p, err := strconv.Atoi(c.Relay.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("relay.port %q is not a valid port", c.Relay.Port)
	}
	if c.Relay.BasePath != "" && !strings.HasPrefix(c.Relay.BasePath, "/") {
		return fmt.Errorf("relay.base_path %q must start with '/'", c.Relay.BasePath)
	}
	if c.Relay.RateLimit < 0 {
		return errors.New("relay.rate_limit must not be negative")
	}
	if c.Relay.RateLimit > 0 && c.Relay.Burst <= 0 {
		return errors.New("relay.burst must be positive when relay.rate_limit is set")
	}
	if c.Relay.MaxBodyBytes <= 0 {
		return errors.New("relay.max_body_bytes must be positive")
	}
	if c.Relay.Upstreams.Qwen == "" || c.Relay.Upstreams.DeepSeek == "" {
		return errors.New("relay.upstreams.qwen and relay.upstreams.deepseek are required")
	}

	// LLM
	switch c.LLM.Provider {
	case "qwen", "deepseek":
	default:
		return fmt.Errorf("llm.provider %q is not supported (qwen, deepseek)", c.LLM.Provider)
	}
	switch c.LLM.Mode {
	case ModeRelay:
		if c.LLM.RelayURL == "" {
			return errors.New("llm.relay_url is required when llm.mode is relay")
		}
	case ModeDirect:
	default:
		return fmt.Errorf("llm.mode %q must be %q or %q", c.LLM.Mode, ModeRelay, ModeDirect)
	}
	if c.LLM.Quota <= 0 {
		return errors.New("llm.quota must be a positive integer")
	}
	if c.LLM.LowWater < 0 || c.LLM.LowWater > c.LLM.Quota {
		return fmt.Errorf("llm.low_water (%d) must be between 0 and llm.quota (%d)", c.LLM.LowWater, c.LLM.Quota)
	}
	if c.LLM.MaxChars <= 0 {
		return errors.New("llm.max_chars must be a positive integer")
	}
	if c.LLM.Timeout < 0 || c.Relay.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}

	// Categories
	for label, exts := range c.Categories {
		if strings.TrimSpace(label) == "" {
			return errors.New("categories contains an empty label")
		}
		if len(exts) == 0 {
			return fmt.Errorf("categories label '%s' has no extensions", label)
		}
	}

	// Log
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}

	return nil
}
