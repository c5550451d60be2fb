package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/medrag/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	n, err := a.Service.IndexCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "drug_labels", a.Index.Collection())
	assert.Equal(t, "llama3.2", a.Generator.Model())
	assert.Equal(t, 0, a.Orchestrator.QueueDepth())
}

func TestNew_BackendErrors(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig(t)
	cfg.LLMBackend = config.BackendAnthropic
	_, err := New(cfg, log)
	assert.ErrorContains(t, err, "API key is required")

	cfg = testConfig(t)
	cfg.EmbedBackend = "word2vec"
	_, err = New(cfg, log)
	assert.ErrorContains(t, err, "unknown embedding backend")
}
