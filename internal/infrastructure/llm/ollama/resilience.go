package ollama

import (
	"context"

	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

// call runs fn under the shared executor and marks retryable failures as
// temporary for the HTTP layer.
func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := c.executor.Execute(ctx, "ollama."+operation, fn, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("ollama "+operation, err, resilience.ClassifyHTTPError)
}
