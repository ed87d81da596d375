package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/claim-processor/internal/bootstrap"
	"github.com/kirillkom/claim-processor/internal/config"
	"github.com/kirillkom/claim-processor/internal/core/ports"
	"github.com/kirillkom/claim-processor/internal/observability/logging"
)

// runtime builds the collaborators a command needs. Tests swap in fakes.
type runtime struct {
	processor func(ctx context.Context, logger *slog.Logger) (ports.DocumentProcessor, ports.RecordReader, func(), error)
	records   func(ctx context.Context) (ports.RecordReader, func(), error)
}

func defaultRuntime() runtime {
	return runtime{
		processor: func(ctx context.Context, logger *slog.Logger) (ports.DocumentProcessor, ports.RecordReader, func(), error) {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return nil, nil, nil, err
			}
			app, err := bootstrap.New(ctx, cfg, logger)
			if err != nil {
				return nil, nil, nil, err
			}
			return app.Processor, app.Records, app.Close, nil
		},
		records: func(ctx context.Context) (ports.RecordReader, func(), error) {
			store, closeStore, err := bootstrap.OpenRecordStore(ctx, config.Load())
			if err != nil {
				return nil, nil, err
			}
			return store, func() { _ = closeStore() }, nil
		},
	}
}

func newRootCmd(rt runtime) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "claimctl",
		Short: "Process insurance claim documents from the command line",
		Long: `claimctl runs the claim pipeline (OCR, quality gate, classification,
storage and summary) against local files, reads stored records back and
serves the pipeline as MCP tools.

Provider and storage settings come from the same environment variables as
the API server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format on stderr (text, json)")

	newLogger := func() *slog.Logger {
		return logging.NewLogger(os.Stderr, "claimctl", logLevel, logFormat)
	}

	root.AddCommand(processCmd(rt, newLogger))
	root.AddCommand(recordCmd(rt))
	root.AddCommand(mcpCmd(rt, newLogger))
	return root
}
