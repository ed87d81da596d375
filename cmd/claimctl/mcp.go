package main

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/claim-processor/internal/adapters/mcp"
)

func mcpCmd(rt runtime, newLogger func() *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			processor, records, closeFn, err := rt.processor(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("initialize pipeline: %w", err)
			}
			defer closeFn()

			srv := mcpadapter.NewServer(mcpadapter.NewTools(processor, records, logger), version)
			return server.ServeStdio(srv)
		},
	}
}
