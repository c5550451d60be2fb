// Package answer answers questions strictly from indexed label text.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dgallion1/medrag/internal/index"
	"github.com/dgallion1/medrag/internal/llm"
)

// Refusal is returned verbatim when the context cannot answer a question.
const Refusal = "Not found in label"

const promptTemplate = `Answer the question based ONLY on the following context from the FDA drug label:

%s

Question: %s

If the information is not in the context, say "` + Refusal + `".`

const systemPrompt = "You answer medication questions using only the supplied drug label excerpts. " +
	"Never use outside knowledge."

// Retriever returns the k indexed chunks most similar to text, best first.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]index.Hit, error)
}

// Config controls retrieval.
type Config struct {
	TopK     int     // Hits retrieved per question; 0 uses the index default
	MinScore float64 // Hits scoring below this are dropped
}

// Engine runs the retrieve, format, bind, generate pipeline.
type Engine struct {
	retriever Retriever
	gen       llm.Generator
	cfg       Config
	log       *slog.Logger
}

// New creates an answering engine.
func New(retriever Retriever, gen llm.Generator, cfg Config, log *slog.Logger) *Engine {
	return &Engine{retriever: retriever, gen: gen, cfg: cfg, log: log}
}

// Result carries the answer and the hits it was grounded on.
type Result struct {
	Answer  string      `json:"answer"`
	Sources []index.Hit `json:"sources,omitempty"`
}

// Answer returns the grounded answer text for question.
func (e *Engine) Answer(ctx context.Context, question string) (string, error) {
	res, err := e.AnswerWithSources(ctx, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// AnswerWithSources is Answer that also reports the retrieved hits.
func (e *Engine) AnswerWithSources(ctx context.Context, question string) (*Result, error) {
	hits, err := e.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		e.log.Info("no context retrieved", "question_len", len(question))
		return &Result{Answer: Refusal}, nil
	}

	prompt := BindPrompt(FormatContext(hits), question)
	answer, err := e.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: answer, Sources: hits}, nil
}

// Retrieve fetches the top hits for question and drops those below MinScore.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]index.Hit, error) {
	hits, err := e.retriever.Query(ctx, question, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if e.cfg.MinScore <= 0 {
		return hits, nil
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= e.cfg.MinScore {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// FormatContext joins hit texts with blank lines in rank order.
func FormatContext(hits []index.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Text
	}
	return strings.Join(parts, "\n\n")
}

// BindPrompt fills the grounding template.
func BindPrompt(contextBlock, question string) string {
	return fmt.Sprintf(promptTemplate, contextBlock, strings.TrimSpace(question))
}

// Generate sends the bound prompt to the model in free-text mode. A reply
// that is only the refusal, give or take quotes and punctuation, is
// normalized to exactly Refusal; any other reply is returned as is.
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := e.gen.Generate(ctx, llm.Request{System: systemPrompt, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	out = strings.TrimSpace(out)
	if IsRefusal(out) {
		return Refusal, nil
	}
	return out, nil
}

// IsRefusal reports whether text is the refusal and nothing else.
func IsRefusal(text string) bool {
	t := strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.EqualFold(t, Refusal)
}
