package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/claim-processor/internal/config"
	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
	"github.com/kirillkom/claim-processor/internal/observability/metrics"
)

const (
	serviceName    = "claim-processor-api"
	successMessage = "Document processed successfully!"

	// multipart parts above this size spill to temporary files.
	multipartMemory = 8 << 20
)

// HealthReporter exposes circuit breaker states for /healthz.
type HealthReporter interface {
	BreakerStates() map[string]string
}

type Router struct {
	processor ports.DocumentProcessor
	records   ports.RecordReader
	metrics   *metrics.HTTPServerMetrics
	health    HealthReporter

	maxUploadBytes          int64
	limiter                 *rate.Limiter
	backpressureMaxInFlight int
	backpressureWait        time.Duration
}

func NewRouter(
	cfg config.Config,
	processor ports.DocumentProcessor,
	records ports.RecordReader,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 16 << 20
	}

	var limiter *rate.Limiter
	if cfg.APIRateLimitRPS > 0 {
		burst := cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), burst)
	}

	return &Router{
		processor: processor,
		records:   records,
		metrics:   httpMetrics,

		maxUploadBytes:          maxUploadBytes,
		limiter:                 limiter,
		backpressureMaxInFlight: cfg.APIBackpressureMaxInFlight,
		backpressureWait:        cfg.APIBackpressureWait,
	}
}

// WithHealth attaches a breaker state source to /healthz.
func (rt *Router) WithHealth(health HealthReporter) *Router {
	rt.health = health
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPIDocument)
	if rt.processor != nil {
		mux.Handle("/v1/documents", bodyLimitMiddleware(http.HandlerFunc(rt.processDocument), rt.maxUploadBytes))
	}
	if rt.records != nil {
		mux.HandleFunc("/v1/records/", rt.getRecord)
	}
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.backpressureMaxInFlight, rt.backpressureWait, rt.recordRejection)
	handler = rateLimitMiddleware(handler, rt.limiter, rt.recordRejection)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) recordRejection(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejection(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.health != nil {
		payload["breakers"] = rt.health.BreakerStates()
	}
	writeJSON(w, http.StatusOK, payload)
}

type processResponse struct {
	Message string `json:"message"`
	*domain.PipelineResult
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if r.ContentLength > rt.maxUploadBytes {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", &http.MaxBytesError{Limit: rt.maxUploadBytes}))
		return
	}
	if err := r.ParseMultipartForm(min(rt.maxUploadBytes, multipartMemory)); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", err))
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	if strings.TrimSpace(fileHeader.Filename) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file selected"})
		return
	}

	submission := domain.Submission{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Body:     file,
	}
	if label := strings.TrimSpace(r.FormValue("expected_category")); label != "" {
		category, ok := domain.ParseCategory(label)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown expected_category " + label})
			return
		}
		submission.ExpectedCategory = category
	}

	result, err := rt.processor.Process(r.Context(), submission)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Message: successMessage, PipelineResult: result})
}

func (rt *Router) getRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/records/")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "record key is required"})
		return
	}

	record, err := rt.records.Load(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	doc, err := LoadAPIDescription()
	if err != nil {
		slog.Error("openapi_load_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "api description unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
