package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerator_Generate(t *testing.T) {
	var gotModel string
	srv := chatServer(t, func(w http.ResponseWriter, body map[string]any) {
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Revenue grew."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}
		}`))
	})

	provider, err := NewProvider(ai.NewConfig(ai.WithHost(srv.URL), ai.WithModel("test-model")))
	require.NoError(t, err)
	defer provider.Close()

	out, err := provider.Generator().Generate(context.Background(), "Summarize", ai.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew.", out)
	assert.Equal(t, "test-model", gotModel)
}

func TestGenerator_ServerErrorIsProviderError(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, body map[string]any) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	})

	gen, err := NewGenerator(ai.NewConfig(ai.WithHost(srv.URL)))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "Summarize", ai.GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProvider)
}

func TestGenerator_SlowServerIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := chatServer(t, func(w http.ResponseWriter, body map[string]any) {
		<-release
	})
	defer close(release)

	gen, err := NewGenerator(ai.NewConfig(ai.WithHost(srv.URL), ai.WithTimeout(50*time.Millisecond)))
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "Summarize", ai.GenerateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderTimeout)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithModel("")))
	assert.Error(t, err)
}

func TestGenerator_LogsToConfiguredLogger(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, body map[string]any) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	provider, err := NewProvider(ai.NewConfig(ai.WithHost(srv.URL), ai.WithLogger(logger)))
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.Generator().Generate(context.Background(), "Summarize", ai.GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, logs.String(), "failed to generate content")
	assert.Contains(t, logs.String(), "component=openai-generator")
}
