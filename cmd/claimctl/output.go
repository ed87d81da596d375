package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want text, json or yaml)", format)
	}
}

func renderResult(w io.Writer, result *domain.PipelineResult, format string) error {
	if format != outputText {
		return writeStructured(w, result, format)
	}

	fmt.Fprintln(w, "Claim Processed Successfully!")
	fmt.Fprintf(w, "Stored at: %s\n", result.StorageReceipt.Location)
	fmt.Fprintf(w, "Category: %s (confidence %d%%)\n", result.Classification.Category, result.Classification.Confidence)
	fmt.Fprintf(w, "Quality score: %d\n", result.QualityScore)
	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintln(w, result.Summary)
	fmt.Fprintln(w, "\nMetrics:")
	return writeStructured(w, result.Metrics, outputYAML)
}

// writeStructured renders payload through its JSON tags so YAML output uses
// the same field names as the HTTP API.
func writeStructured(w io.Writer, payload any, format string) error {
	if format == outputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return encoder.Close()
}

func describeFailure(err error) error {
	var lowQuality *domain.LowQualityError
	if errors.As(err, &lowQuality) {
		return fmt.Errorf("%s. Please provide a clearer image", lowQuality.Error())
	}
	return err
}
