package categorizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock transport and reader ---

type sentRequest struct {
	provider Provider
	apiKey   string
	body     []byte
}

type mockTransport struct {
	calls   []sentRequest
	respond func(call int, body []byte) (int, []byte, error)
}

func (m *mockTransport) Send(ctx context.Context, p Provider, apiKey string, body []byte) (int, []byte, error) {
	m.calls = append(m.calls, sentRequest{provider: p, apiKey: apiKey, body: body})
	return m.respond(len(m.calls)-1, body)
}

type mapReader map[string]string

func (r mapReader) ReadText(ctx context.Context, f FileDescriptor) (string, error) {
	text, ok := r[f.Name]
	if !ok {
		return "", ErrNotText
	}
	return text, nil
}

// --- End mocks ---

func deepSeekAnswer(label string) []byte {
	b, _ := json.Marshal(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: label}}},
	})
	return b
}

func qwenAnswer(label string) []byte {
	return []byte(fmt.Sprintf(`{"output":{"text":%q},"request_id":"r"}`, label))
}

func makeFiles(n int) ([]FileDescriptor, mapReader) {
	files := make([]FileDescriptor, n)
	reader := mapReader{}
	for i := range files {
		name := fmt.Sprintf("file%02d.txt", i)
		files[i] = FileDescriptor{Name: name, MimeType: "text/plain", RelativePath: "docs/" + name}
		reader[name] = "content of " + name
	}
	return files, reader
}

func TestClassify_AllSucceed(t *testing.T) {
	files, reader := makeFiles(12)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, deepSeekAnswer("  invoice \n"), nil
	}}
	c := NewClassifier(reader, transport)

	var quotaCalls []int
	obs := ObserverFuncs{OnQuotaLow: func(r int) { quotaCalls = append(quotaCalls, r) }}

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderDeepSeek, APIKey: "k"}, obs)

	require.Len(t, results, 12)
	for i, r := range results {
		assert.Equal(t, files[i].Name, r.Name, "results must keep input order")
		assert.Equal(t, "invoice", r.Category)
		assert.Equal(t, files[i].RelativePath, r.RelativePath)
		assert.Equal(t, "text/plain", r.MimeType)
	}
	assert.Empty(t, quotaCalls, "88 remaining never drops below the low-water mark")
	assert.Len(t, transport.calls, 12)
	for _, call := range transport.calls {
		assert.Equal(t, "k", call.apiKey)
		assert.Equal(t, ProviderDeepSeek, call.provider)
	}
}

func TestClassify_QuotaTruncatesBatch(t *testing.T) {
	files, reader := makeFiles(8)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("report"), nil
	}}
	c := NewClassifier(reader, transport)
	c.Quota = 5

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderQwen, APIKey: "k"}, nil)

	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, files[i].Name, r.Name)
	}
	assert.Len(t, transport.calls, 5, "files past the quota must not be attempted")
}

func TestClassify_FailureDoesNotAbort(t *testing.T) {
	files, reader := makeFiles(4)
	transport := &mockTransport{respond: func(call int, _ []byte) (int, []byte, error) {
		switch call {
		case 1:
			return 500, []byte(`{"error":"boom"}`), nil
		case 2:
			return 0, nil, errors.New("connection refused")
		}
		return 200, deepSeekAnswer("contract"), nil
	}}
	c := NewClassifier(reader, transport)

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderDeepSeek, APIKey: "k"}, nil)

	require.Len(t, results, 4)
	assert.Equal(t, "contract", results[0].Category)
	assert.Equal(t, FailedCategory, results[1].Category)
	assert.Equal(t, FailedCategory, results[2].Category)
	assert.Equal(t, "contract", results[3].Category)
}

func TestClassify_MalformedAndEmptyLabels(t *testing.T) {
	files, reader := makeFiles(3)
	answers := [][]byte{
		[]byte(`{"choices":[]}`),
		deepSeekAnswer("   "),
		[]byte(`not json`),
	}
	transport := &mockTransport{respond: func(call int, _ []byte) (int, []byte, error) {
		return 200, answers[call], nil
	}}
	c := NewClassifier(reader, transport)

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderDeepSeek, APIKey: "k"}, nil)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, FailedCategory, r.Category)
	}
}

func TestClassify_QuotaLowFiresOnceAtCrossing(t *testing.T) {
	files, reader := makeFiles(10)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("paper"), nil
	}}
	c := NewClassifier(reader, transport)
	c.Quota = 15
	c.LowWater = 10

	var quotaCalls []int
	var progress []int
	obs := ObserverFuncs{
		OnQuotaLow: func(r int) { quotaCalls = append(quotaCalls, r) },
		OnProgress: func(done, total int) {
			assert.Equal(t, 10, total)
			progress = append(progress, done)
		},
	}

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderQwen, APIKey: "k"}, obs)

	require.Len(t, results, 10)
	// 15 -> 9 after the sixth file.
	assert.Equal(t, []int{9}, quotaCalls)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, progress)
}

func TestClassify_ZeroLowWaterNeverWarns(t *testing.T) {
	files, reader := makeFiles(12)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("invoice"), nil
	}}
	c := NewClassifier(reader, transport)
	c.Quota = 12
	c.LowWater = 0

	var quotaCalls []int
	obs := ObserverFuncs{OnQuotaLow: func(r int) { quotaCalls = append(quotaCalls, r) }}

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderQwen, APIKey: "k"}, obs)

	require.Len(t, results, 12)
	assert.Empty(t, quotaCalls)
}

func TestClassify_MissingKeyFailsFast(t *testing.T) {
	files, reader := makeFiles(3)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		t.Fatal("transport must not be called without an API key")
		return 0, nil, nil
	}}
	c := NewClassifier(reader, transport)
	c.Quota = 2

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderQwen}, nil)

	require.Len(t, results, 2, "failed calls still consume quota")
	for _, r := range results {
		assert.Equal(t, FailedCategory, r.Category)
	}
	assert.Empty(t, transport.calls)
}

func TestClassify_SharedKeyFallback(t *testing.T) {
	files, reader := makeFiles(1)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("resume"), nil
	}}
	c := NewClassifier(reader, transport)
	c.SharedKeys = map[Provider]string{ProviderQwen: "shared"}

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderQwen}, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "resume", results[0].Category)
	require.Len(t, transport.calls, 1)
	assert.Equal(t, "shared", transport.calls[0].apiKey)
}

func TestClassify_UnreadableFile(t *testing.T) {
	files, reader := makeFiles(2)
	delete(reader, files[0].Name)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("code"), nil
	}}
	c := NewClassifier(reader, transport)

	results := c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderQwen, APIKey: "k"}, nil)

	require.Len(t, results, 2)
	assert.Equal(t, FailedCategory, results[0].Category)
	assert.Equal(t, "code", results[1].Category)
	assert.Len(t, transport.calls, 1)
}

func TestClassify_TruncatesContent(t *testing.T) {
	long := strings.Repeat("é", DefaultMaxChars+500)
	files := []FileDescriptor{{Name: "big.txt"}}
	reader := mapReader{"big.txt": long}
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, deepSeekAnswer("report"), nil
	}}
	c := NewClassifier(reader, transport)

	c.ClassifyAll(context.Background(), files, LLMConfig{Provider: ProviderDeepSeek, APIKey: "k"}, nil)

	require.Len(t, transport.calls, 1)
	var req openai.ChatCompletionRequest
	require.NoError(t, json.Unmarshal(transport.calls[0].body, &req))
	require.Len(t, req.Messages, 2)
	assert.Equal(t, DefaultMaxChars, len([]rune(req.Messages[1].Content)))
	assert.Equal(t, DefaultDeepSeekModel, req.Model)
}

func TestClassify_CallerStopsEarly(t *testing.T) {
	files, reader := makeFiles(5)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("other"), nil
	}}
	c := NewClassifier(reader, transport)

	seen := 0
	for range c.Classify(context.Background(), files, LLMConfig{Provider: ProviderQwen, APIKey: "k"}, nil) {
		seen++
		if seen == 2 {
			break
		}
	}

	assert.Equal(t, 2, seen)
	assert.Len(t, transport.calls, 2, "no call is issued after the caller stops")
}

func TestClassify_CancelledContext(t *testing.T) {
	files, reader := makeFiles(3)
	transport := &mockTransport{respond: func(int, []byte) (int, []byte, error) {
		return 200, qwenAnswer("other"), nil
	}}
	c := NewClassifier(reader, transport)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.ClassifyAll(ctx, files, LLMConfig{Provider: ProviderQwen, APIKey: "k"}, nil)

	assert.Empty(t, results)
	assert.Empty(t, transport.calls)
}

func TestUpstreamError(t *testing.T) {
	var err error = &UpstreamError{Provider: ProviderQwen, Status: 429}
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 429, upstream.Status)
	assert.Contains(t, err.Error(), "qwen")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "日本", truncate("日本語", 2))
	assert.Equal(t, "", truncate("abc", 0))
}
