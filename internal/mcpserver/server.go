// Package mcpserver exposes label ingestion, grounded answering and
// schedule extraction as MCP tools so assistants can call them over stdio.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/medrag/internal/extract"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ErrMissingService is returned when no service is provided.
var ErrMissingService = errors.New("mcpserver: service is required")

// Service is the medrag surface the tools call.
type Service interface {
	IngestDrug(ctx context.Context, drugName string) (int, error)
	Ask(ctx context.Context, question string) (string, error)
	GenerateSchedule(ctx context.Context, drugName, dosageText string) extract.ReminderSchedule
}

// Server is the MCP server for medrag.
type Server struct {
	svc    Service
	log    *slog.Logger
	server *mcp.Server
}

// NewServer creates an MCP server with every tool registered.
func NewServer(svc Service, log *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, ErrMissingService
	}
	impl := &mcp.Implementation{
		Name:    "medrag",
		Version: Version,
	}
	s := &Server{
		svc:    svc,
		log:    log,
		server: mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", "transport", "stdio", "version", Version)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
