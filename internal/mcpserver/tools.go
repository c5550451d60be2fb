package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/medrag/internal/extract"
	"github.com/dgallion1/medrag/internal/label"
)

// IngestInput is the input schema for the ingest_drug tool.
type IngestInput struct {
	DrugName string `json:"drug_name" jsonschema:"brand or generic drug name to fetch from openFDA"`
}

// IngestOutput is the output schema for the ingest_drug tool.
type IngestOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

// AskInput is the input schema for the ask_label tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"question answered only from ingested label text"`
}

// AskOutput is the output schema for the ask_label tool.
type AskOutput struct {
	Answer string `json:"answer"`
}

// ScheduleInput is the input schema for the generate_schedule tool.
type ScheduleInput struct {
	DrugName   string `json:"drug_name" jsonschema:"drug the reminders are for"`
	DosageText string `json:"dosage_text" jsonschema:"free-text dosage instructions"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_drug",
		Description: "Fetch a drug label from openFDA and index its warnings, dosage, adverse reaction and indication sections",
	}, s.handleIngest)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_label",
		Description: `Answer a question using only indexed label text; replies "Not found in label" otherwise`,
	}, s.handleAsk)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_schedule",
		Description: "Turn free-text dosage instructions into a reminder schedule of 24h HH:MM times",
	}, s.handleSchedule)
}

func (s *Server) handleIngest(ctx context.Context, _ *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, IngestOutput, error) {
	name := strings.TrimSpace(input.DrugName)
	if name == "" {
		return nil, IngestOutput{}, errors.New("drug_name is required")
	}
	n, err := s.svc.IngestDrug(ctx, name)
	switch {
	case err != nil && !errors.Is(err, label.ErrNotFound):
		return nil, IngestOutput{}, err
	case err != nil || n == 0:
		return nil, IngestOutput{Message: "Drug not found or failed to ingest"}, nil
	}
	return nil, IngestOutput{
		Success: true,
		Message: fmt.Sprintf("Successfully ingested data for %s", name),
		Chunks:  n,
	}, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.svc.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: answer}, nil
}

func (s *Server) handleSchedule(ctx context.Context, _ *mcp.CallToolRequest, input ScheduleInput) (*mcp.CallToolResult, extract.ReminderSchedule, error) {
	if strings.TrimSpace(input.DrugName) == "" {
		return nil, extract.ReminderSchedule{}, errors.New("drug_name is required")
	}
	return nil, s.svc.GenerateSchedule(ctx, input.DrugName, input.DosageText), nil
}
