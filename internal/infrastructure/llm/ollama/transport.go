package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

const (
	generatePath     = "/api/generate"
	doneReasonLength = "length"

	// OCR of a dense multi-page scan stays well under this.
	maxResponseBytes = 8 << 20
)

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Images  []string         `json:"images,omitempty"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}

var errTruncatedResponse = errors.New("ollama response was not completed")

// postGenerate sends a non-streaming generate request. A response cut off at
// the model's token limit carries partial text and is rejected.
func (c *Client) postGenerate(ctx context.Context, operation string, payload generateRequest) (generateResponse, error) {
	payload.Stream = false
	body, err := json.Marshal(payload)
	if err != nil {
		return generateResponse{}, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generateResponse{}, fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return generateResponse{}, resilience.NewStatusError("ollama", operation, resp)
	}

	var out generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return generateResponse{}, fmt.Errorf("decode %s response: %w", operation, err)
	}
	if out.DoneReason == doneReasonLength {
		return generateResponse{}, fmt.Errorf("%s (%s): %w", operation, out.DoneReason, errTruncatedResponse)
	}
	return out, nil
}
