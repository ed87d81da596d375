package main

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

func processCmd(rt runtime, newLogger func() *slog.Logger) *cobra.Command {
	var (
		output           string
		expectedCategory string
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run the claim pipeline on a local document",
		Long: `Process a claim document end to end and print the result with its
per-run metrics.

Supported inputs are images (sent to the vision provider), PDFs, XLSX
spreadsheets and plain text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			submission := domain.Submission{
				Filename: filepath.Base(args[0]),
				MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(args[0]))),
			}
			if expectedCategory != "" {
				category, ok := domain.ParseCategory(expectedCategory)
				if !ok {
					return fmt.Errorf("unknown expected category %q", expectedCategory)
				}
				submission.ExpectedCategory = category
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open document: %w", err)
			}
			defer file.Close()
			submission.Body = file

			processor, _, closeFn, err := rt.processor(cmd.Context(), newLogger())
			if err != nil {
				return fmt.Errorf("initialize pipeline: %w", err)
			}
			defer closeFn()

			result, err := processor.Process(cmd.Context(), submission)
			if err != nil {
				return describeFailure(err)
			}
			return renderResult(cmd.OutOrStdout(), result, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json, yaml)")
	cmd.Flags().StringVar(&expectedCategory, "expected-category", "", "ground-truth category for the accuracy metric")
	return cmd
}
