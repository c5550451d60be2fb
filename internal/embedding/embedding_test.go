package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		w.Write([]byte(`{"embedding":[0.5,-1,2]}`))
	}))
	defer srv.Close()

	e := NewOllama(OllamaConfig{BaseURL: srv.URL + "/"})
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, vec)
	assert.Equal(t, "nomic-embed-text", e.ModelName())
}

func TestOllamaEmbedder_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, "boom", true},
		{"model missing", http.StatusNotFound, `{"error":"model not found"}`, false},
		{"empty embedding", http.StatusOK, `{"embedding":[]}`, false},
		{"error field", http.StatusOK, `{"error":"out of memory"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Embed(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
			assert.Equal(t, tt.retryable, retry.IsRetryable(err))
		})
	}
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := NewOllama(OllamaConfig{BaseURL: url})
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	assert.ErrorIs(t, e.Ping(context.Background()), label.ErrUpstreamUnavailable)
}

func TestOllamaEmbedder_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()
	assert.NoError(t, NewOllama(OllamaConfig{BaseURL: srv.URL}).Ping(context.Background()))
}

func TestOpenAIEmbedder_BatchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		w.Write([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	require.NoError(t, err, "local endpoints do not need a key")
	_, err = e.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	assert.True(t, retry.IsRetryable(err))
}

func TestOpenAIEmbedder_MissingEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "a")
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
}

func TestNewOpenAI_RequiresKeyForPublicAPI(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)
}
