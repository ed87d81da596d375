package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/claim-processor/internal/infrastructure/llm"
	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

// Client holds the Vertex AI generative model shared by OCR and generation.
type Client struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
	executor   *resilience.Executor
}

func New(ctx context.Context, projectID, region, modelName string, executor *resilience.Executor) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ExternalCallConfig())
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &Client{model: model, baseClient: baseClient, executor: executor}, nil
}

func (c *Client) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

type Recognizer struct {
	client *Client
}

func NewRecognizer(client *Client) *Recognizer {
	return &Recognizer{client: client}
}

func (r *Recognizer) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return r.client.generate(ctx, "ocr", genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(llm.OCRInstruction))
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, "generate", genai.Text(prompt))
}

var errEmptyResponse = errors.New("vertex returned no text")

func (c *Client) generate(ctx context.Context, operation string, parts ...genai.Part) (string, error) {
	var text string
	err := c.executor.Execute(ctx, "vertex."+operation, func(callCtx context.Context) error {
		resp, err := c.model.GenerateContent(callCtx, parts...)
		if err != nil {
			return fmt.Errorf("vertex %s: %w", operation, err)
		}
		text = extractText(resp)
		if text == "" {
			return errEmptyResponse
		}
		return nil
	}, classifyVertexError)
	if err != nil {
		return "", resilience.WrapTemporary("vertex "+operation, err, classifyVertexError)
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	texts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			texts = append(texts, string(txt))
		}
	}
	return strings.TrimSpace(llm.ResponseText(texts))
}

// classifyVertexError maps gRPC status codes onto the shared retry policy.
func classifyVertexError(err error) resilience.ErrorClassification {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound, codes.FailedPrecondition:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ClassifyHTTPError(err)
}
