package categorizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Upstream endpoints used when no override is configured.
const (
	QwenEndpoint     = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"
	DeepSeekEndpoint = "https://api.deepseek.com/v1/chat/completions"

	DefaultQwenModel     = "qwen-turbo"
	DefaultDeepSeekModel = "deepseek-chat"
)

// DefaultEndpoints maps each provider to its upstream URL.
func DefaultEndpoints() map[Provider]string {
	return map[Provider]string{
		ProviderQwen:     QwenEndpoint,
		ProviderDeepSeek: DeepSeekEndpoint,
	}
}

const (
	labelTemperature = 0.2
	labelMaxTokens   = 20
)

// DefaultInstruction asks the model for a single category label.
const DefaultInstruction = "Judge the type of this file from its content and reply with the single most fitting " +
	"category label (for example: contract, invoice, resume, paper, report, image, code, spreadsheet, " +
	"presentation, audio, video, other). Reply with the label only, no explanation."

// strategy shapes requests and reads labels for one provider.
type strategy interface {
	DefaultModel() string
	BuildRequest(instruction, content, model string) ([]byte, error)
	ParseLabel(body []byte) (string, error)
}

var strategies = map[Provider]strategy{
	ProviderQwen:     qwenStrategy{},
	ProviderDeepSeek: deepSeekStrategy{},
}

func strategyFor(p Provider) (strategy, error) {
	s, ok := strategies[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", p)
	}
	return s, nil
}

// deepSeekStrategy speaks the OpenAI-compatible chat completion format.
type deepSeekStrategy struct{}

func (deepSeekStrategy) DefaultModel() string { return DefaultDeepSeekModel }

func (deepSeekStrategy) BuildRequest(instruction, content, model string) ([]byte, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a file classification assistant. " + instruction},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		Temperature: labelTemperature,
		MaxTokens:   labelMaxTokens,
	}
	return json.Marshal(req)
}

func (deepSeekStrategy) ParseLabel(body []byte) (string, error) {
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("deepseek: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek: no choices in response")
	}
	return nonEmpty(resp.Choices[0].Message.Content)
}

// qwenStrategy speaks the DashScope text-generation format.
type qwenStrategy struct{}

type qwenInput struct {
	Prompt string `json:"prompt"`
}

type qwenParameters struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type qwenRequest struct {
	Model      string         `json:"model"`
	Input      qwenInput      `json:"input"`
	Parameters qwenParameters `json:"parameters"`
}

type qwenResponse struct {
	Output *struct {
		Text    *string `json:"text"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

func (qwenStrategy) DefaultModel() string { return DefaultQwenModel }

func (qwenStrategy) BuildRequest(instruction, content, model string) ([]byte, error) {
	return json.Marshal(qwenRequest{
		Model:      model,
		Input:      qwenInput{Prompt: instruction + "\n" + content},
		Parameters: qwenParameters{Temperature: labelTemperature, MaxTokens: labelMaxTokens},
	})
}

func (qwenStrategy) ParseLabel(body []byte) (string, error) {
	var resp qwenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("qwen: decode response: %w", err)
	}
	if resp.Output == nil {
		return "", fmt.Errorf("qwen: missing output in response")
	}
	// result_format=message answers carry choices instead of text
	if resp.Output.Text != nil {
		return nonEmpty(*resp.Output.Text)
	}
	if len(resp.Output.Choices) > 0 {
		return nonEmpty(resp.Output.Choices[0].Message.Content)
	}
	return "", fmt.Errorf("qwen: missing output.text in response")
}

func nonEmpty(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", ErrEmptyLabel
	}
	return label, nil
}
