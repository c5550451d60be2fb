package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStripCodeBlock(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1]\n```", "[1]"},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripCodeBlock(tt.in); got != tt.want {
			t.Errorf("StripCodeBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOllama_GenerateJSONSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.2", body["model"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, map[string]any{"type": "object"}, body["format"])
		opts := body["options"].(map[string]any)
		assert.Equal(t, float64(0), opts["temperature"], "zero temperature must be sent")
		w.Write([]byte(`{"response":"{\"ok\":true}","done":true}`))
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL})
	out, err := g.Generate(context.Background(), Request{
		Prompt:      "p",
		JSON:        true,
		Schema:      json.RawMessage(`{"type":"object"}`),
		Temperature: Temp(0),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestOllama_GenerateFreeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasFormat := body["format"]
		assert.False(t, hasFormat)
		_, hasOptions := body["options"]
		assert.False(t, hasOptions)
		w.Write([]byte(`{"response":"Take with food.","done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllama(OllamaConfig{BaseURL: srv.URL, Model: "m"}).Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Take with food.", out)
}

func TestOllama_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"overloaded", http.StatusServiceUnavailable, "busy", true},
		{"bad model", http.StatusNotFound, `{"error":"model not found"}`, false},
		{"error body", http.StatusOK, `{"error":"failed"}`, false},
		{"garbage", http.StatusOK, `nope`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Generate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
			assert.Equal(t, tt.retryable, retry.IsRetryable(err))
		})
	}
}

func TestAnthropic_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.System, "JSON schema")
		require.NotNil(t, body.Temperature)
		assert.Equal(t, 0.0, *body.Temperature)
		w.Write([]byte("{\"content\":[{\"type\":\"text\",\"text\":\"```json\\n{\\\"drug\\\":\\\"x\\\"}\\n```\"}]}"))
	}))
	defer srv.Close()

	g, err := NewAnthropic(AnthropicConfig{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	out, err := g.Generate(context.Background(), Request{
		Prompt:      "p",
		Schema:      json.RawMessage(`{"type":"object"}`),
		Temperature: Temp(0),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"drug":"x"}`, out)
}

func TestAnthropic_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g, err := NewAnthropic(AnthropicConfig{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	assert.True(t, retry.IsRetryable(err))

	_, err = NewAnthropic(AnthropicConfig{})
	assert.Error(t, err)
}

// scriptedGenerator returns errs in order, then reply.
type scriptedGenerator struct {
	errs  []error
	reply string
	delay time.Duration
	calls atomic.Int32
}

func (g *scriptedGenerator) Generate(ctx context.Context, _ Request) (string, error) {
	n := int(g.calls.Add(1)) - 1
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if n < len(g.errs) {
		return "", g.errs[n]
	}
	return g.reply, nil
}

func (g *scriptedGenerator) Model() string { return "scripted" }

func newTestResilient(g Generator, timeout time.Duration) *Resilient {
	r := NewResilient(g, timeout, testLogger())
	r.backoff = func(int) time.Duration { return 0 }
	return r
}

func TestResilient_RetriesTransientErrors(t *testing.T) {
	g := &scriptedGenerator{
		errs:  []error{&retry.RetryableError{StatusCode: 503}, &retry.RetryableError{StatusCode: 429}},
		reply: "ok",
	}
	r := newTestResilient(g, time.Second)

	out, err := r.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), g.calls.Load())

	snap := r.Stats()
	assert.Equal(t, "scripted", snap.Model)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 2, snap.Errors)
}

func TestResilient_PermanentErrorWrapped(t *testing.T) {
	g := &scriptedGenerator{errs: []error{errors.New("bad request")}}
	r := newTestResilient(g, time.Second)

	_, err := r.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	assert.Equal(t, int32(1), g.calls.Load())
}

func TestResilient_Timeout(t *testing.T) {
	g := &scriptedGenerator{delay: time.Second, reply: "late"}
	r := newTestResilient(g, 20*time.Millisecond)

	_, err := r.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
}

func TestResilient_BreakerOpens(t *testing.T) {
	var errs []error
	for range 20 {
		errs = append(errs, errors.New("down"))
	}
	g := &scriptedGenerator{errs: errs}
	r := newTestResilient(g, time.Second)

	for range 5 {
		_, err := r.Generate(context.Background(), Request{Prompt: "p"})
		require.Error(t, err)
	}
	_, err := r.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, label.ErrUpstreamUnavailable)
	assert.Equal(t, int32(5), g.calls.Load(), "open breaker must not call the backend")
}
