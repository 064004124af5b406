package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"filetriage/pkg/categorizer"
)

// Options controls the router surface around the relay handlers.
type Options struct {
	BasePath     string
	RateLimit    float64 // requests per second per client, 0 disables
	Burst        int
	MaxBodyBytes int64
}

// Relay forwards classification calls to the upstream LLM APIs, moving the
// caller's apiKey from the body into a bearer header. It keeps no state
// between requests.
type Relay struct {
	Upstreams map[categorizer.Provider]string
	Client    *http.Client
}

// New returns a Relay for the given upstream URLs; missing entries fall back
// to the public endpoints.
func New(upstreams map[categorizer.Provider]string, client *http.Client) *Relay {
	merged := categorizer.DefaultEndpoints()
	for p, u := range upstreams {
		if u != "" {
			merged[p] = u
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{Upstreams: merged, Client: client}
}

// Router builds the gin engine serving the relay.
func (r *Relay) Router(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Logging(), Recovery(), CORS())
	if opts.RateLimit > 0 {
		router.Use(RateLimit(NewRateLimiter(opts.RateLimit, opts.Burst)))
	}
	router.Use(MaxBody(opts.MaxBodyBytes))

	base := router.Group(strings.TrimRight(opts.BasePath, "/"))
	{
		base.POST("/qwen", r.QwenHandler)
		base.POST("/deepseek", r.DeepSeekHandler)
		base.GET("/health", HealthHandler)
	}

	router.NoRoute(func(c *gin.Context) {
		plainError(c, http.StatusNotFound, "Not found")
	})
	return router
}

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type qwenInput struct {
	Prompt   json.RawMessage `json:"prompt"`
	Messages json.RawMessage `json:"messages"`
}

type qwenUpstreamRequest struct {
	Model      string          `json:"model"`
	Input      json.RawMessage `json:"input"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// QwenHandler validates the input block and forwards only the fields the
// DashScope generation API accepts.
func (r *Relay) QwenHandler(c *gin.Context) {
	fields, ok := r.readBody(c)
	if !ok {
		return
	}

	var input qwenInput
	if raw, has := fields["input"]; has {
		// a non-object input counts as missing
		_ = json.Unmarshal(raw, &input)
	}
	if !present(input.Prompt) && !present(input.Messages) {
		invalidParameter(c, "input.prompt or input.messages is required")
		return
	}
	apiKey, ok := requireAPIKey(c, fields, "Qwen")
	if !ok {
		return
	}

	var model string
	if raw, has := fields["model"]; has {
		_ = json.Unmarshal(raw, &model)
	}
	if model == "" {
		model = categorizer.DefaultQwenModel
	}

	body, err := json.Marshal(qwenUpstreamRequest{
		Model:      model,
		Input:      fields["input"],
		Parameters: fields["parameters"],
	})
	if err != nil {
		relayError(c, "failed to encode upstream request", err)
		return
	}
	r.forward(c, categorizer.ProviderQwen, apiKey, body)
}

// DeepSeekHandler forwards the body unchanged apart from the apiKey field.
func (r *Relay) DeepSeekHandler(c *gin.Context) {
	fields, ok := r.readBody(c)
	if !ok {
		return
	}
	apiKey, ok := requireAPIKey(c, fields, "DeepSeek")
	if !ok {
		return
	}
	delete(fields, "apiKey")

	body, err := json.Marshal(fields)
	if err != nil {
		relayError(c, "failed to encode upstream request", err)
		return
	}
	r.forward(c, categorizer.ProviderDeepSeek, apiKey, body)
}

func (r *Relay) readBody(c *gin.Context) (map[string]json.RawMessage, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(c, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		relayError(c, "failed to read request body", err)
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		relayError(c, "malformed request JSON", err)
		return nil, false
	}
	if fields == nil {
		relayError(c, "malformed request JSON", errors.New("body is null"))
		return nil, false
	}
	return fields, true
}

func requireAPIKey(c *gin.Context, fields map[string]json.RawMessage, name string) (string, bool) {
	var key string
	if raw, has := fields["apiKey"]; has {
		_ = json.Unmarshal(raw, &key)
	}
	if strings.TrimSpace(key) == "" {
		plainError(c, http.StatusUnauthorized, fmt.Sprintf("Missing %s API key", name))
		return "", false
	}
	return key, true
}

func (r *Relay) forward(c *gin.Context, p categorizer.Provider, apiKey string, body []byte) {
	url := r.Upstreams[p]
	entry := log.WithFields(log.Fields{
		"request_id": RequestIDFrom(c),
		"provider":   p,
		"upstream":   url,
	})
	entry.Debugf("Forwarding %d bytes", len(body))

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		relayError(c, "failed to build upstream request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := r.Client.Do(req)
	if err != nil {
		relayError(c, fmt.Sprintf("%s upstream request failed", p), err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		relayError(c, fmt.Sprintf("failed to read %s upstream response", p), err)
		return
	}
	if !json.Valid(respBody) {
		relayError(c, fmt.Sprintf("%s upstream returned a non-JSON body", p),
			fmt.Errorf("status %d, %d bytes", resp.StatusCode, len(respBody)))
		return
	}

	entry.WithField("status", resp.StatusCode).Debugf("Upstream answered with %d bytes", len(respBody))
	c.Data(resp.StatusCode, "application/json; charset=utf-8", respBody)
}

// present reports whether a JSON value is set and not falsy-empty. Any
// spelling of numeric zero (0.0, -0, 0e5) counts as empty.
func present(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "false":
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return true
}
