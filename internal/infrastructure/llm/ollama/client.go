package ollama

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/claim-processor/internal/infrastructure/llm"
	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	genModel    string
	visionModel string
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(baseURL, genModel, visionModel string, executor *resilience.Executor) *Client {
	if visionModel == "" {
		visionModel = genModel
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.ExternalCallConfig())
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		genModel:    genModel,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		executor:    executor,
	}
}

// Recognizer runs OCR through a vision-capable model such as llava.
type Recognizer struct {
	client *Client
}

func NewRecognizer(client *Client) *Recognizer {
	return &Recognizer{client: client}
}

func (r *Recognizer) Recognize(ctx context.Context, data []byte, _ string) (string, error) {
	return r.client.generate(ctx, "ocr", generateRequest{
		Model:   r.client.visionModel,
		Prompt:  llm.OCRInstruction,
		Images:  []string{base64.StdEncoding.EncodeToString(data)},
		Options: &generateOptions{Temperature: 0},
	})
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, "generate", generateRequest{
		Model:  g.client.genModel,
		Prompt: prompt,
	})
}

var errEmptyResponse = errors.New("ollama returned no text")

func (c *Client) generate(ctx context.Context, operation string, req generateRequest) (string, error) {
	var text string
	err := c.call(ctx, operation, func(callCtx context.Context) error {
		response, err := c.postGenerate(callCtx, operation, req)
		if err != nil {
			return err
		}
		text = llm.ResponseText([]string{response.Response})
		if text == "" {
			return errEmptyResponse
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
