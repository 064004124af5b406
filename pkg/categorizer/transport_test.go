package categorizer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayTransport_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/qwen", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "secret", body["apiKey"])
		assert.Equal(t, "qwen-turbo", body["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tr := &RelayTransport{BaseURL: srv.URL + "/api/", Client: srv.Client()}
	status, body, err := tr.Send(context.Background(), ProviderQwen, "secret", []byte(`{"model":"qwen-turbo"}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestRelayTransport_RejectsNonObjectBody(t *testing.T) {
	tr := &RelayTransport{BaseURL: "http://127.0.0.1:1"}
	_, _, err := tr.Send(context.Background(), ProviderQwen, "k", []byte(`[1,2]`))
	require.Error(t, err)
}

func TestDirectTransport_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NotContains(t, string(raw), "apiKey")
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	tr := &DirectTransport{Endpoints: map[Provider]string{ProviderDeepSeek: srv.URL}, Client: srv.Client()}
	status, body, err := tr.Send(context.Background(), ProviderDeepSeek, "secret", []byte(`{"model":"m"}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"choices":[]}`, string(body))
}

func TestDirectTransport_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := &DirectTransport{Endpoints: map[Provider]string{ProviderQwen: url}}
	_, _, err := tr.Send(context.Background(), ProviderQwen, "k", []byte(`{}`))
	require.Error(t, err)
}

func TestWithAPIKey(t *testing.T) {
	out, err := WithAPIKey([]byte(`{"model":"m","input":{"prompt":"p"}}`), "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m","input":{"prompt":"p"},"apiKey":"k"}`, string(out))
}
