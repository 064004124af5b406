package categorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RelayTransport posts requests to a relay at BaseURL/<provider>, embedding
// the API key in the JSON body.
type RelayTransport struct {
	BaseURL string
	Client  *http.Client
}

func (t *RelayTransport) Send(ctx context.Context, p Provider, apiKey string, body []byte) (int, []byte, error) {
	withKey, err := WithAPIKey(body, apiKey)
	if err != nil {
		return 0, nil, err
	}
	url := strings.TrimRight(t.BaseURL, "/") + "/" + string(p)
	return post(ctx, t.Client, url, nil, withKey)
}

// DirectTransport posts requests straight to the upstream provider, sending
// the API key as a bearer credential.
type DirectTransport struct {
	Endpoints map[Provider]string
	Client    *http.Client
}

func (t *DirectTransport) Send(ctx context.Context, p Provider, apiKey string, body []byte) (int, []byte, error) {
	url, ok := t.Endpoints[p]
	if !ok {
		url, ok = DefaultEndpoints()[p]
	}
	if !ok {
		return 0, nil, fmt.Errorf("no endpoint for provider %q", p)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	return post(ctx, t.Client, url, header, body)
}

// WithAPIKey adds an "apiKey" member to a JSON object body.
func WithAPIKey(body []byte, apiKey string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("request body is not a JSON object: %w", err)
	}
	key, err := json.Marshal(apiKey)
	if err != nil {
		return nil, err
	}
	fields["apiKey"] = key
	return json.Marshal(fields)
}

func post(ctx context.Context, client *http.Client, url string, header http.Header, body []byte) (int, []byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

var (
	_ Transport = (*RelayTransport)(nil)
	_ Transport = (*DirectTransport)(nil)
)
