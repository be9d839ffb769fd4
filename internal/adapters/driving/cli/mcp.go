package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/passage/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can ingest
documents and retrieve cited passages.

By default, the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP instead; HTTP mode also exposes /healthz and
/metrics. HTTP binds to loopback unless --host says otherwise.

Examples:
  # Stdio mode (default)
  passage mcp serve

  # HTTP mode
  passage mcp serve --port 8080

  # HTTP mode reachable from other machines
  passage mcp serve --port 8080 --host 0.0.0.0

Assistant configuration:
  {
    "mcpServers": {
      "passage": {
        "command": "/path/to/passage",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

var (
	mcpPort int
	mcpHost string
)

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "127.0.0.1", "HTTP bind address")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if mcpPort < 0 || mcpPort > 65535 {
		return fmt.Errorf("invalid port %d", mcpPort)
	}
	if retrievalService == nil || corpusService == nil {
		return errors.New("corpus services not configured")
	}

	ports := &mcp.Ports{
		Retrieval: retrievalService,
		Corpus:    corpusService,
		Metrics:   metricsHandler,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopMaintenance := startMaintenance(ctx)
	defer stopMaintenance()

	if mcpPort > 0 {
		addr := net.JoinHostPort(mcpHost, fmt.Sprint(mcpPort))
		// stdout is free in HTTP mode; stdio mode must keep it for JSON-RPC.
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
