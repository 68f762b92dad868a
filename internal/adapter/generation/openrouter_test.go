package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/retry"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	t.Setenv("OPENROUTER_API_KEY", "test-key")

	c, err := NewClient("OPENROUTER_API_KEY", "test-model", ClientOptions{
		BaseURL: baseURL,
		Policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "the answer"}},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	text, err := c.Generate(context.Background(), "system prompt", "user message")
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "system prompt", gotReq.Messages[0].Content)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "test-model", gotReq.Model)
}

func TestTemperatureZeroIsPreserved(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")

	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "ok"}},
			},
		})
	}))
	defer server.Close()

	zero := 0.0
	c, err := NewClient("OPENROUTER_API_KEY", "test-model", ClientOptions{
		BaseURL:     server.URL,
		Temperature: &zero,
	})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, 0.0, gotReq.Temperature, "explicit temperature 0 must not fall back to the default")

	// Unset temperature still falls back to the default.
	c = newTestClient(t, server.URL)
	_, err = c.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, 0.7, gotReq.Temperature)
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "recovered"}},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	text, err := c.Generate(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, domain.DepGeneration, se.Dependency)
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
}

func TestNewClientMissingKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY_ABSENT", "")
	_, err := NewClient("OPENROUTER_API_KEY_ABSENT", "m", ClientOptions{})
	require.Error(t, err)
}
