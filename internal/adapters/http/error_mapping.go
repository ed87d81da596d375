package httpadapter

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrLowQuality):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with a client-safe message. Server-side failures
// only name the stage; their cause goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	stage := domain.Stage("")
	var pipelineErr *domain.PipelineError
	if errors.As(err, &pipelineErr) {
		stage = pipelineErr.Stage
	}

	payload := map[string]any{}
	switch status {
	case http.StatusUnprocessableEntity:
		var lowQuality *domain.LowQualityError
		if errors.As(err, &lowQuality) {
			payload["error"] = lowQuality.Error()
			payload["quality_score"] = lowQuality.Score
			payload["threshold"] = lowQuality.Threshold
		} else {
			payload["error"] = "document quality is too low"
		}
	case http.StatusRequestEntityTooLarge:
		payload["error"] = "uploaded file is too large"
	case http.StatusBadRequest, http.StatusNotFound:
		payload["error"] = clientMessage(err, pipelineErr)
	case http.StatusServiceUnavailable:
		payload["error"] = stageMessage("is temporarily unavailable", stage)
	default:
		payload["error"] = stageMessage("failed", stage)
	}
	if stage != "" {
		payload["stage"] = stage
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"status", status,
			"stage", stage,
			"error", err,
		)
	}
	writeJSON(w, status, payload)
}

func clientMessage(err error, pipelineErr *domain.PipelineError) string {
	if pipelineErr != nil && pipelineErr.Err != nil {
		return pipelineErr.Err.Error()
	}
	return err.Error()
}

func stageMessage(outcome string, stage domain.Stage) string {
	if stage == "" {
		return fmt.Sprintf("document processing %s", outcome)
	}
	return fmt.Sprintf("document processing %s at %s stage", outcome, stage)
}
