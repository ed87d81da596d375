package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

const (
	serverName = "claim-processor"

	toolProcessDocument = "process_document"
	toolGetRecord       = "get_record"
)

type Tools struct {
	processor ports.DocumentProcessor
	records   ports.RecordReader
	logger    *slog.Logger
}

func NewTools(processor ports.DocumentProcessor, records ports.RecordReader, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{processor: processor, records: records, logger: logger}
}

// NewServer builds an MCP server exposing the pipeline as tools.
func NewServer(tools *Tools, version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	tools.Register(srv)
	return srv
}

func (t *Tools) Register(srv *server.MCPServer) {
	srv.AddTool(mcp.NewTool(toolProcessDocument,
		mcp.WithDescription("Run the claim pipeline on a local file: OCR, quality gate, classification, storage and summary."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document to process")),
		mcp.WithString("expected_category",
			mcp.Description("Optional ground-truth category used for the accuracy metric"),
			mcp.Enum(categoryNames()...),
		),
	), t.processDocument)

	if t.records != nil {
		srv.AddTool(mcp.NewTool(toolGetRecord,
			mcp.WithDescription("Load a stored claim record by its storage key."),
			mcp.WithString("key", mcp.Required(), mcp.Description("Storage key returned by process_document")),
		), t.getRecord)
	}
}

func (t *Tools) processDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	submission := domain.Submission{
		Filename: filepath.Base(path),
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
	}
	if label := request.GetString("expected_category", ""); label != "" {
		category, ok := domain.ParseCategory(label)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown expected_category %q", label)), nil
		}
		submission.ExpectedCategory = category
	}

	file, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("open %s: %v", path, err)), nil
	}
	defer file.Close()
	submission.Body = file

	result, err := t.processor.Process(ctx, submission)
	if err != nil {
		t.logger.Warn("mcp_tool_failed", "tool", toolProcessDocument, "path", path, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	return jsonResult(result)
}

func (t *Tools) getRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := t.records.Load(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(record)
}

func toolErrorMessage(err error) string {
	var lowQuality *domain.LowQualityError
	if errors.As(err, &lowQuality) {
		return lowQuality.Error() + ". Please upload a clearer image."
	}
	return err.Error()
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func categoryNames() []string {
	categories := domain.Categories()
	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, string(category))
	}
	return names
}
