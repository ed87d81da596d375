package dispatch

import (
	"bytes"
	"context"
	"log/slog"
	"mime"
	"strings"

	"github.com/kirillkom/claim-processor/internal/core/ports"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Recognizer routes a document to a text recognizer by MIME type. Images and
// anything unrecognized go to the vision recognizer, and PDFs without a text
// layer fall back to it as well.
type Recognizer struct {
	vision      ports.TextRecognizer
	pdf         ports.TextRecognizer
	spreadsheet ports.TextRecognizer
	plaintext   ports.TextRecognizer
	logger      *slog.Logger
}

type Options struct {
	PDF         ports.TextRecognizer
	Spreadsheet ports.TextRecognizer
	PlainText   ports.TextRecognizer
	Logger      *slog.Logger
}

func New(vision ports.TextRecognizer, opts Options) *Recognizer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Recognizer{
		vision:      vision,
		pdf:         opts.PDF,
		spreadsheet: opts.Spreadsheet,
		plaintext:   opts.PlainText,
		logger:      opts.Logger,
	}
}

func (r *Recognizer) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch kind := mediaType(mimeType, data); {
	case kind == mimePDF && r.pdf != nil:
		text, err := r.pdf.Recognize(ctx, data, kind)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		r.logger.Debug("pdf_text_layer_empty_fallback_to_vision")
		return r.vision.Recognize(ctx, data, kind)
	case kind == mimeXLSX && r.spreadsheet != nil:
		return r.spreadsheet.Recognize(ctx, data, kind)
	case strings.HasPrefix(kind, "text/") && r.plaintext != nil:
		return r.plaintext.Recognize(ctx, data, kind)
	default:
		return r.vision.Recognize(ctx, data, mimeType)
	}
}

// mediaType strips parameters and recognizes XLSX payloads that were sniffed
// as plain zip archives.
func mediaType(mimeType string, data []byte) string {
	kind, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		kind = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if kind == "application/zip" && bytes.Contains(data, []byte("xl/workbook.xml")) {
		return mimeXLSX
	}
	return kind
}
