package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

// DefaultMaxDocumentBytes bounds a single upload.
const DefaultMaxDocumentBytes int64 = 16 << 20

const (
	// maxFilenameLength keeps "<uuid>_<name>.json" under common 255-byte
	// filesystem name limits.
	maxFilenameLength  = 100
	maxExtensionLength = 16
)

// DocumentKey is the identity a document is staged and stored under.
func DocumentKey(documentID, filename string) string {
	return fmt.Sprintf("%s_%s", documentID, sanitizeFilename(filename))
}

// loadStaged reads a staged upload back, enforcing the size bound.
func loadStaged(ctx context.Context, staging ports.StagingArea, key string, maxBytes int64) ([]byte, error) {
	reader, err := staging.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open staged document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read staged document: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read staged document", fmt.Errorf("document exceeds %d bytes", maxBytes))
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read staged document", errors.New("empty document"))
	}
	return raw, nil
}

// resolveMimeType trusts the caller's hint unless it is missing or generic.
func resolveMimeType(hint string, data []byte) string {
	hint = strings.TrimSpace(hint)
	if hint == "" || hint == "application/octet-stream" {
		return http.DetectContentType(data)
	}
	return hint
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return truncateFilename(base)
}

// truncateFilename shortens the stem and keeps a plausible extension.
// Input is already reduced to ASCII.
func truncateFilename(name string) string {
	if len(name) <= maxFilenameLength {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > maxExtensionLength {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	return stem[:maxFilenameLength-len(ext)] + ext
}
