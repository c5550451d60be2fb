package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGenerator replies from a fixed list and records every request.
type scriptedGenerator struct {
	replies []string
	err     error
	reqs    []llm.Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func (g *scriptedGenerator) Model() string { return "scripted" }

func TestExtract_MetforminTwiceDaily(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`{"drug":"Metformin","dosage":"500 mg","times":["8:00","20:00"],"instructions":"Take with meals"}`,
	}}
	s, outcome := New(gen, testLogger()).ExtractWithOutcome(context.Background(), "Metformin", "Take 500 mg twice daily with meals")

	if outcome != OutcomeParsed {
		t.Errorf("outcome = %s", outcome)
	}
	if len(s.Times) != 2 {
		t.Fatalf("times = %v, want 2 entries", s.Times)
	}
	if s.Times[0] != "09:00" || s.Times[1] != "21:00" {
		t.Errorf("times = %v, want table times for twice daily", s.Times)
	}
	if !strings.Contains(s.Dosage, "500") {
		t.Errorf("dosage = %q, want it to contain 500", s.Dosage)
	}

	req := gen.reqs[0]
	if !req.JSON || len(req.Schema) == 0 {
		t.Error("extraction must request schema-constrained JSON")
	}
	if req.Temperature == nil || *req.Temperature != 0 {
		t.Error("extraction must run at temperature 0")
	}
}

func TestExtract_ExplicitTimesKept(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`{"drug":"Levothyroxine","dosage":"50 mcg","times":["06:30"],"instructions":"Empty stomach"}`,
	}}
	s := New(gen, testLogger()).Extract(context.Background(), "Levothyroxine", "50 mcg once daily at 6:30")
	if len(s.Times) != 1 || s.Times[0] != "06:30" {
		t.Errorf("times = %v, want model times", s.Times)
	}
}

func TestExtract_CompoundRegimenKeepsModelTimes(t *testing.T) {
	for _, text := range []string{
		"Take 2 tablets every 4 hours; do not exceed 6 doses daily",
		"Take 10 mg once daily in the morning and 5 mg at bedtime",
		"Take 1 tablet twice daily and 1 tablet at bedtime",
	} {
		t.Run(text, func(t *testing.T) {
			gen := &scriptedGenerator{replies: []string{
				`{"drug":"X","dosage":"1 tablet","times":["09:00","21:00","22:00"],"instructions":"As directed"}`,
			}}
			s := New(gen, testLogger()).Extract(context.Background(), "X", text)
			if strings.Join(s.Times, ",") != "09:00,21:00,22:00" {
				t.Errorf("times = %v, want the model's three times", s.Times)
			}
		})
	}
}

func TestExtract_RepromptsOnce(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`{"drug":"X","dosage":"1 tablet","times":["9am"],"instructions":""}`,
		`{"drug":"X","dosage":"1 tablet","times":["09:00"],"instructions":""}`,
	}}
	s, outcome := New(gen, testLogger()).ExtractWithOutcome(context.Background(), "X", "1 tablet each morning, 9am")

	if outcome != OutcomeReprompted {
		t.Errorf("outcome = %s", outcome)
	}
	if s.IsFallback() || s.Times[0] != "09:00" {
		t.Errorf("schedule = %+v", s)
	}
	if len(gen.reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(gen.reqs))
	}
	if !strings.Contains(gen.reqs[1].Prompt, "HH:MM") || !strings.Contains(gen.reqs[1].Prompt, "rejected") {
		t.Errorf("re-prompt does not carry the violation:\n%s", gen.reqs[1].Prompt)
	}
}

func TestExtract_MalformedOutputFallsBack(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Take it twice a day.", "{not json"}}
	s, outcome := New(gen, testLogger()).ExtractWithOutcome(context.Background(), "Metformin", "Take 500 mg twice daily")

	if outcome != OutcomeFallback {
		t.Errorf("outcome = %s", outcome)
	}
	if s.Drug != "Metformin" || s.Dosage != "Unknown" || len(s.Times) != 0 || !strings.Contains(s.Instructions, "Could not parse") {
		t.Errorf("schedule = %+v, want fallback", s)
	}
	if len(gen.reqs) != maxAttempts {
		t.Errorf("requests = %d, want %d", len(gen.reqs), maxAttempts)
	}
}

func TestExtract_GenerationErrorFallsBack(t *testing.T) {
	gen := &scriptedGenerator{err: label.ErrUpstreamUnavailable}
	s := New(gen, testLogger()).Extract(context.Background(), "Metformin", "Take 500 mg twice daily")
	if !s.IsFallback() || s.Drug != "Metformin" {
		t.Errorf("schedule = %+v, want fallback", s)
	}
	if len(gen.reqs) != 1 {
		t.Errorf("requests = %d, want 1", len(gen.reqs))
	}
}

func TestExtract_EmptyDosageSkipsModel(t *testing.T) {
	gen := &scriptedGenerator{}
	s := New(gen, testLogger()).Extract(context.Background(), "Metformin", "  ")
	if !s.IsFallback() || len(gen.reqs) != 0 {
		t.Errorf("schedule = %+v after %d requests", s, len(gen.reqs))
	}
}
