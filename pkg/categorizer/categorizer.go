package categorizer

import (
	"context"
	"errors"
	"fmt"
)

// FailedCategory is the category assigned when a file could not be classified.
const FailedCategory = "classification failed"

// Provider names an upstream LLM text-generation service.
type Provider string

const (
	ProviderQwen     Provider = "qwen"
	ProviderDeepSeek Provider = "deepseek"
)

// Providers lists the supported providers in display order.
var Providers = []Provider{ProviderQwen, ProviderDeepSeek}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if _, ok := strategies[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrEmptyLabel    = errors.New("empty label in response")
	ErrNotText       = errors.New("content is not text")
)

// UpstreamError reports a non-2xx answer from a provider or the relay.
type UpstreamError struct {
	Provider Provider
	Status   int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream returned status %d", e.Provider, e.Status)
}

// FileDescriptor is a read-only snapshot of a user-selected file.
// Content may be preloaded; otherwise readers fall back to Path.
type FileDescriptor struct {
	Name         string
	MimeType     string
	RelativePath string
	Path         string
	Content      []byte
}

// ClassificationResult holds the category assigned to one file.
type ClassificationResult struct {
	Name         string `json:"name"`
	MimeType     string `json:"type"`
	Category     string `json:"category"`
	RelativePath string `json:"path"`
}

func resultFor(f FileDescriptor, category string) ClassificationResult {
	path := f.RelativePath
	if path == "" {
		path = f.Name
	}
	return ClassificationResult{
		Name:         f.Name,
		MimeType:     f.MimeType,
		Category:     category,
		RelativePath: path,
	}
}

// LLMConfig selects the provider, credential and model for one batch.
type LLMConfig struct {
	Provider Provider
	APIKey   string
	Model    string
}

// ContentReader returns the textual content of a file.
type ContentReader interface {
	ReadText(ctx context.Context, f FileDescriptor) (string, error)
}

// Transport delivers a provider request body and returns the raw answer.
type Transport interface {
	Send(ctx context.Context, p Provider, apiKey string, body []byte) (int, []byte, error)
}

// Observer receives progress and quota signals from a classification batch.
type Observer interface {
	Progress(done, total int)
	QuotaLow(remaining int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	OnProgress func(done, total int)
	OnQuotaLow func(remaining int)
}

func (o ObserverFuncs) Progress(done, total int) {
	if o.OnProgress != nil {
		o.OnProgress(done, total)
	}
}

func (o ObserverFuncs) QuotaLow(remaining int) {
	if o.OnQuotaLow != nil {
		o.OnQuotaLow(remaining)
	}
}

type noopObserver struct{}

func (noopObserver) Progress(int, int) {}
func (noopObserver) QuotaLow(int)      {}
