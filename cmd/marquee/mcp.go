package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/vadimtrunov/marquee/internal/mcp"
)

// newMCPServeCmd returns the "mcp-serve" subcommand. It exposes the movie
// catalog as MCP tools over stdin/stdout; logs go to stderr.
func newMCPServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-serve",
		Short: "Start an MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			mcpserver.Version = version

			srv := mcpserver.NewServer(newTMDbClient(cfg, logger), logger)
			return srv.ServeStdio(cmd.Context())
		},
	}
}
