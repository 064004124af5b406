package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"filetriage/internal/config"
	"filetriage/internal/fileingest"
	"filetriage/internal/relay"
	"filetriage/pkg/categorizer"
)

// DefaultHealthTimeout bounds a relay health check.
const DefaultHealthTimeout = 5 * time.Second

type App struct {
	Config *config.Config

	HealthTimeout time.Duration

	Lookup     *categorizer.Lookup
	Reader     *fileingest.Reader
	Classifier *categorizer.Classifier
	Relay      *relay.Relay
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, HealthTimeout: DefaultHealthTimeout}

	if err := ConfigureLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	app.initLookup()
	if err := app.initClassifier(); err != nil {
		return nil, err
	}
	app.initRelay()

	log.Debug("Application initialization complete.")
	return app, nil
}

// ConfigureLogging sets the global logrus level and formatter.
func ConfigureLogging(level, format string) error {
	if level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		log.SetLevel(lvl)
	}
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// --- Private Helper Methods ---

func (a *App) initLookup() {
	a.Lookup = categorizer.NewLookup(a.Config.Categories)
	if n := len(a.Config.Categories); n > 0 {
		log.Debugf("Loaded %d custom categories", n)
	}
}

func (a *App) initClassifier() error {
	cfg := a.Config
	a.Reader = fileingest.NewReader()
	a.Classifier = categorizer.NewClassifier(a.Reader, nil)
	a.Classifier.Quota = cfg.LLM.Quota
	a.Classifier.LowWater = cfg.LLM.LowWater
	a.Classifier.MaxChars = cfg.LLM.MaxChars

	promptContent, err := config.LoadPromptContent(cfg.LLM.PromptFile)
	if err != nil {
		log.Warnf("Failed to load classification prompt: %v. Using the built-in instruction.", err)
		promptContent = ""
	}
	a.Classifier.Instruction = strings.TrimSpace(promptContent)

	shared := map[categorizer.Provider]string{}
	if cfg.LLM.SharedKeys.Qwen != "" {
		shared[categorizer.ProviderQwen] = cfg.LLM.SharedKeys.Qwen
	}
	if cfg.LLM.SharedKeys.DeepSeek != "" {
		shared[categorizer.ProviderDeepSeek] = cfg.LLM.SharedKeys.DeepSeek
	}
	a.Classifier.SharedKeys = shared

	return a.SetTransport(cfg.LLM.Mode, cfg.LLM.RelayURL)
}

func (a *App) initRelay() {
	cfg := a.Config
	a.Relay = relay.New(map[categorizer.Provider]string{
		categorizer.ProviderQwen:     cfg.Relay.Upstreams.Qwen,
		categorizer.ProviderDeepSeek: cfg.Relay.Upstreams.DeepSeek,
	}, &http.Client{Timeout: cfg.Relay.Timeout})
}

// SetTransport points the classifier at a relay or straight at the providers.
func (a *App) SetTransport(mode, relayURL string) error {
	client := &http.Client{Timeout: a.Config.LLM.Timeout}
	switch mode {
	case config.ModeRelay, "":
		if relayURL == "" {
			return fmt.Errorf("relay mode needs a relay URL (llm.relay_url)")
		}
		a.Classifier.Transport = &categorizer.RelayTransport{BaseURL: relayURL, Client: client}
		log.Debugf("Classifier sends through relay %s", relayURL)
	case config.ModeDirect:
		a.Classifier.Transport = &categorizer.DirectTransport{
			Endpoints: map[categorizer.Provider]string{
				categorizer.ProviderQwen:     a.Config.Relay.Upstreams.Qwen,
				categorizer.ProviderDeepSeek: a.Config.Relay.Upstreams.DeepSeek,
			},
			Client: client,
		}
		log.Debug("Classifier calls providers directly")
	default:
		return fmt.Errorf("unknown transport mode %q", mode)
	}
	return nil
}

// LLMConfig resolves a call configuration, filling blanks from config.
func (a *App) LLMConfig(provider, apiKey, model string) (categorizer.LLMConfig, error) {
	if provider == "" {
		provider = a.Config.LLM.Provider
	}
	p, err := categorizer.ParseProvider(provider)
	if err != nil {
		return categorizer.LLMConfig{}, err
	}
	if apiKey == "" {
		apiKey = a.Config.APIKey(string(p))
	}
	if model == "" {
		model = a.Config.LLM.Model
	}
	return categorizer.LLMConfig{Provider: p, APIKey: apiKey, Model: model}, nil
}

// RelayOptions returns the router options from config.
func (a *App) RelayOptions() relay.Options {
	return relay.Options{
		BasePath:     a.Config.Relay.BasePath,
		RateLimit:    a.Config.Relay.RateLimit,
		Burst:        a.Config.Relay.Burst,
		MaxBodyBytes: a.Config.Relay.MaxBodyBytes,
	}
}

// CheckRelay calls the health endpoint of the relay at relayURL.
func (a *App) CheckRelay(ctx context.Context, relayURL string) error {
	url := strings.TrimRight(relayURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	client := &http.Client{Timeout: a.HealthTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
