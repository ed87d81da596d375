package plaintext

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// Recognizer returns UTF-8 uploads as-is. It is used for text/* documents
// that need no OCR.
type Recognizer struct{}

func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

func (Recognizer) Recognize(_ context.Context, data []byte, _ string) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode plain text", errors.New("document is not valid UTF-8"))
	}
	return strings.TrimSpace(string(data)), nil
}
