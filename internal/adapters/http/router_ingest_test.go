package httpadapter

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/claim-processor/internal/config"
	"github.com/kirillkom/claim-processor/internal/core/domain"
)

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if content != nil {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

type breakersFake map[string]string

func (f breakersFake) BreakerStates() map[string]string { return f }

func TestHealthzEndpoint(t *testing.T) {
	handler := NewRouter(config.Config{}, &processorFake{}, nil, nil).
		WithHealth(breakersFake{"gemini.ocr": "closed"}).
		Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var payload struct {
		Status   string            `json:"status"`
		Breakers map[string]string `json:"breakers"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if payload.Status != "ok" || payload.Breakers["gemini.ocr"] != "closed" {
		t.Fatalf("unexpected health payload: %+v", payload)
	}
}

func TestProcessDocumentSuccess(t *testing.T) {
	processor := &processorFake{}
	handler := NewRouter(config.Config{}, processor, nil, nil).Handler()

	body, contentType := multipartUpload(t, "claim.txt", []byte("hello claim"), map[string]string{
		"expected_category": "Medical Records",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["message"] != "Document processed successfully!" {
		t.Fatalf("unexpected message: %v", payload["message"])
	}
	if payload["document_id"] != "doc-1" {
		t.Fatalf("expected flattened pipeline result, got %v", payload)
	}
	classification, ok := payload["classification"].(map[string]any)
	if !ok || classification["category"] != "medical_records" {
		t.Fatalf("unexpected classification: %v", payload["classification"])
	}

	if len(processor.seen) != 1 {
		t.Fatalf("expected one submission, got %d", len(processor.seen))
	}
	if processor.seen[0].Filename != "claim.txt" {
		t.Fatalf("unexpected filename %q", processor.seen[0].Filename)
	}
	if processor.seen[0].ExpectedCategory != domain.CategoryMedicalRecords {
		t.Fatalf("expected parsed expected_category, got %q", processor.seen[0].ExpectedCategory)
	}
	if string(processor.body) != "hello claim" {
		t.Fatalf("unexpected body forwarded: %q", processor.body)
	}
}

func TestProcessDocumentRequiresFile(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartUpload(t, "", nil, map[string]string{"note": "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestProcessDocumentRejectsUnknownExpectedCategory(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartUpload(t, "claim.txt", []byte("text"), map[string]string{"expected_category": "car_crash"})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestProcessDocumentRejectsOversizedBody(t *testing.T) {
	handler := newTestHandler(config.Config{MaxUploadBytes: 64})

	body, contentType := multipartUpload(t, "claim.txt", bytes.Repeat([]byte("x"), 1024), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestProcessDocumentMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestGetRecord(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/records/doc-1_claim.txt", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var record domain.StoredRecord
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Classification != "medical_records" || len(record.Chunks) != 2 {
		t.Fatalf("unexpected record: %+v", record)
	}

	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/v1/records/unknown", nil))
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", missing.Code)
	}
}

func TestOpenAPIDocumentIsServed(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var doc map[string]any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		t.Fatalf("expected paths in document")
	}
	for _, path := range []string{"/healthz", "/v1/documents", "/v1/records/{key}"} {
		if _, ok := paths[path]; !ok {
			t.Fatalf("expected path %s in api description", path)
		}
	}
}
