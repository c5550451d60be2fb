// Package extract turns free-text dosing instructions into a ReminderSchedule.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgallion1/medrag/internal/llm"
)

// Outcome describes how a schedule was produced.
type Outcome string

const (
	OutcomeParsed     Outcome = "parsed"
	OutcomeReprompted Outcome = "reprompted"
	OutcomeFallback   Outcome = "fallback"
)

// maxAttempts is the first prompt plus one re-prompt on a schema violation.
const maxAttempts = 2

// Extractor prompts a generator for a schedule and validates the reply.
type Extractor struct {
	gen llm.Generator
	log *slog.Logger
}

// New creates an extractor.
func New(gen llm.Generator, log *slog.Logger) *Extractor {
	return &Extractor{gen: gen, log: log}
}

// Extract never fails: on any generation or parse error it returns
// Fallback(drugName).
func (e *Extractor) Extract(ctx context.Context, drugName, dosageText string) ReminderSchedule {
	s, _ := e.ExtractWithOutcome(ctx, drugName, dosageText)
	return s
}

// ExtractWithOutcome is Extract that also reports how the schedule was made.
func (e *Extractor) ExtractWithOutcome(ctx context.Context, drugName, dosageText string) (ReminderSchedule, Outcome) {
	log := e.log.With("drug_name", drugName)
	if strings.TrimSpace(dosageText) == "" {
		log.Warn("empty dosage text, using fallback schedule")
		return Fallback(drugName), OutcomeFallback
	}

	violation := ""
	for attempt := range maxAttempts {
		raw, err := e.gen.Generate(ctx, llm.Request{
			System:      systemPrompt,
			Prompt:      BuildSchedulePrompt(drugName, dosageText, violation),
			JSON:        true,
			Schema:      ScheduleSchema,
			Temperature: llm.Temp(0),
		})
		if err != nil {
			log.Warn("schedule generation failed, using fallback schedule", "error", err)
			return Fallback(drugName), OutcomeFallback
		}

		s, err := ParseSchedule(raw, drugName)
		if err != nil {
			violation = err.Error()
			log.Warn("schedule reply rejected", "attempt", attempt+1, "error", err)
			continue
		}

		if times, ok := DefaultTimes(dosageText); ok {
			s.Times = times
		}
		if attempt > 0 {
			return s, OutcomeReprompted
		}
		return s, OutcomeParsed
	}

	log.Warn("schedule reply invalid after re-prompt, using fallback schedule", "violation", violation)
	return Fallback(drugName), OutcomeFallback
}
