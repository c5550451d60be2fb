package main

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/medrag/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Start the Model Context Protocol server for assistant integration.
It exposes the ingest_drug, ask_label and generate_schedule tools and
communicates over stdio using JSON-RPC.

Example client configuration:
  {
    "mcpServers": {
      "medrag": {
        "command": "/path/to/medrag",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	log := logger()
	a, err := openApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcpserver.NewServer(a.Service, log)
	if err != nil {
		return err
	}
	return server.Run(cmd.Context())
}
