package categorizer

import (
	"context"
	"fmt"
	"iter"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultQuota    = 100
	DefaultLowWater = 10
	DefaultMaxChars = 4000
)

// Classifier labels files by sending their text to an LLM provider, one file
// at a time, within a per-batch quota.
type Classifier struct {
	Reader    ContentReader
	Transport Transport

	Quota    int // calls allowed per batch
	LowWater int // QuotaLow fires when the remainder first drops below this; 0 never fires
	MaxChars int // content budget per prompt, in characters

	// Instruction replaces DefaultInstruction when set.
	Instruction string

	// SharedKeys are deployment-supplied credentials used when a batch
	// carries no API key of its own.
	SharedKeys map[Provider]string
}

// NewClassifier creates a Classifier with the default quota and limits.
func NewClassifier(reader ContentReader, transport Transport) *Classifier {
	return &Classifier{
		Reader:    reader,
		Transport: transport,
		Quota:     DefaultQuota,
		LowWater:  DefaultLowWater,
		MaxChars:  DefaultMaxChars,
	}
}

// Classify returns a lazy sequence of results in input order. Every processed
// file consumes one unit of quota whether or not its call succeeds; once the
// quota is spent the sequence ends and the remaining files are omitted.
// Per-file failures yield FailedCategory and never stop the batch.
func (c *Classifier) Classify(ctx context.Context, files []FileDescriptor, cfg LLMConfig, obs Observer) iter.Seq[ClassificationResult] {
	if obs == nil {
		obs = noopObserver{}
	}
	return func(yield func(ClassificationResult) bool) {
		remaining := positiveOr(c.Quota, DefaultQuota)
		signalled := false

		for i, f := range files {
			if err := ctx.Err(); err != nil {
				log.Warnf("Classification stopped before %q: %v", f.Name, err)
				return
			}

			category := c.classifyFile(ctx, f, cfg)

			remaining--
			if !signalled && remaining < c.LowWater {
				signalled = true
				obs.QuotaLow(remaining)
			}
			obs.Progress(i+1, len(files))

			if !yield(resultFor(f, category)) {
				return
			}
			if remaining <= 0 {
				if i+1 < len(files) {
					log.Warnf("Classification quota exhausted, %d file(s) not attempted", len(files)-i-1)
				}
				return
			}
		}
	}
}

// ClassifyAll drains Classify into a slice.
func (c *Classifier) ClassifyAll(ctx context.Context, files []FileDescriptor, cfg LLMConfig, obs Observer) []ClassificationResult {
	results := make([]ClassificationResult, 0, len(files))
	for r := range c.Classify(ctx, files, cfg, obs) {
		results = append(results, r)
	}
	return results
}

func (c *Classifier) classifyFile(ctx context.Context, f FileDescriptor, cfg LLMConfig) string {
	label, err := c.label(ctx, f, cfg)
	if err != nil {
		log.WithFields(log.Fields{
			"file":     f.RelativePath,
			"provider": cfg.Provider,
		}).Warnf("Classification failed: %v", err)
		return FailedCategory
	}
	log.Debugf("Classified %q as %q", f.Name, label)
	return label
}

func (c *Classifier) label(ctx context.Context, f FileDescriptor, cfg LLMConfig) (string, error) {
	s, err := strategyFor(cfg.Provider)
	if err != nil {
		return "", err
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = c.SharedKeys[cfg.Provider]
	}
	if apiKey == "" {
		return "", fmt.Errorf("%s: %w", cfg.Provider, ErrMissingAPIKey)
	}
	if c.Reader == nil || c.Transport == nil {
		return "", fmt.Errorf("classifier is not initialized with a reader and transport")
	}

	text, err := c.Reader.ReadText(ctx, f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}

	model := cfg.Model
	if model == "" {
		model = s.DefaultModel()
	}
	instruction := c.Instruction
	if instruction == "" {
		instruction = DefaultInstruction
	}
	body, err := s.BuildRequest(instruction, truncate(text, positiveOr(c.MaxChars, DefaultMaxChars)), model)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", cfg.Provider, err)
	}

	status, resp, err := c.Transport.Send(ctx, cfg.Provider, apiKey, body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cfg.Provider, err)
	}
	if status < 200 || status > 299 {
		return "", &UpstreamError{Provider: cfg.Provider, Status: status}
	}
	return s.ParseLabel(resp)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for pos := range s {
		if count == n {
			return s[:pos]
		}
		count++
	}
	return s
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
