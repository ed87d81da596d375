package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/kirillkom/claim-processor/internal/infrastructure/llm"
	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

const (
	DefaultModel      = "gemini-1.5-flash"
	DefaultAPIVersion = "v1beta"
)

type Config struct {
	// BaseURL overrides the Gemini API endpoint; empty uses the SDK default.
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls Gemini generateContent through the Gemini API backend of the
// genai SDK, authenticated with an API key.
type Client struct {
	models   *genai.Models
	model    string
	config   *genai.GenerateContentConfig
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ExternalCallConfig())
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: DefaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &Client{
		models:   client.Models,
		model:    cfg.Model,
		config:   &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)},
		executor: executor,
	}, nil
}

// Recognizer performs OCR by sending the document inline to the model.
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
	return r.client.generate(ctx, "ocr",
		genai.NewPartFromText(llm.OCRInstruction),
		genai.NewPartFromBytes(data, mimeType),
	)
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, "generate", genai.NewPartFromText(prompt))
}

var errEmptyResponse = errors.New("gemini returned no text")

func (c *Client) generate(ctx context.Context, operation string, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var text string
	err := c.executor.Execute(ctx, "gemini."+operation, func(callCtx context.Context) error {
		resp, err := c.models.GenerateContent(callCtx, c.model, contents, c.config)
		if err != nil {
			return fmt.Errorf("gemini %s: %w", operation, statusError(operation, err))
		}
		out, err := responseText(resp)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, resilience.ClassifyHTTPError)
	if err != nil {
		return "", resilience.WrapTemporary("gemini "+operation, err, resilience.ClassifyHTTPError)
	}
	return text, nil
}

// statusError lifts SDK API errors into resilience.StatusError so the shared
// HTTP classifier sees the status code.
func statusError(operation string, err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return err
		}
		apiErr = *apiErrPtr
	}
	return &resilience.StatusError{
		Provider:   "gemini",
		Operation:  operation,
		StatusCode: apiErr.Code,
		Status:     fmt.Sprintf("%d %s", apiErr.Code, apiErr.Status),
		Body:       apiErr.Message,
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}

	texts := make([]string, 0, len(resp.Candidates[0].Content.Parts))
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		texts = append(texts, part.Text)
	}
	text := llm.ResponseText(texts)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}
