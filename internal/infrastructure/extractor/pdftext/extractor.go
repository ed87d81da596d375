package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// Recognizer reads the embedded text layer of a PDF. Scanned PDFs without a
// text layer yield an empty string, which callers treat as "needs OCR".
type Recognizer struct {
	maxPages int
}

func NewRecognizer(maxPages int) *Recognizer {
	if maxPages <= 0 {
		maxPages = 200
	}
	return &Recognizer{maxPages: maxPages}
}

func (r *Recognizer) Recognize(ctx context.Context, data []byte, _ string) (string, error) {
	pages, err := validate(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate pdf", err)
	}
	if pages > r.maxPages {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate pdf", fmt.Errorf("pdf has %d pages, limit is %d", pages, r.maxPages))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// validate parses the document structure and returns its page count.
func validate(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return pdfCtx.PageCount, nil
}
