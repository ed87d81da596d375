package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	ErrLowQuality           = errors.New("document quality too low")
	ErrOCRFailed            = errors.New("ocr failed")
	ErrClassificationFailed = errors.New("classification failed")
	ErrStorageFailed        = errors.New("storage failed")
	ErrSummarizationFailed  = errors.New("summarization failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// LowQualityError reports an OCR result rejected by the quality gate.
// Callers should ask for a clearer image rather than treat it as permanent.
type LowQualityError struct {
	Score     int
	Threshold int
}

func (e *LowQualityError) Error() string {
	return fmt.Sprintf("document quality is too low: %d%% (minimum %d%%)", e.Score, e.Threshold)
}

func (e *LowQualityError) Is(target error) bool {
	return target == ErrLowQuality
}

// PipelineError is returned when a run ends in the failed state.
type PipelineError struct {
	Stage Stage
	// State is the last state reached before failing.
	State PipelineState
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s stage (state=%s): %v", e.Stage, e.State, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
