package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
}

func TestRecognizerSendsImageToVisionModel(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  Hospital discharge note "}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "llava", testExecutor())
	text, err := NewRecognizer(client).Recognize(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "Hospital discharge note" {
		t.Fatalf("unexpected text %q", text)
	}
	if payload["model"] != "llava" {
		t.Fatalf("expected vision model, got %v", payload["model"])
	}
	images, _ := payload["images"].([]any)
	if len(images) != 1 || images[0] != "aW1n" {
		t.Fatalf("unexpected images: %v", payload["images"])
	}
}

func TestGeneratorUsesGenerationModel(t *testing.T) {
	var capturedPrompt, capturedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		capturedPrompt, _ = payload["prompt"].(string)
		capturedModel, _ = payload["model"].(string)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "", testExecutor())
	if _, err := NewGenerator(client).Generate(context.Background(), "Summarize this"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if capturedPrompt != "Summarize this" || capturedModel != "llama3" {
		t.Fatalf("unexpected request: model=%q prompt=%q", capturedModel, capturedPrompt)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "", testExecutor())
	_, err := NewGenerator(client).Generate(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestGenerateRejectsEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "", testExecutor())
	if _, err := NewGenerator(client).Generate(context.Background(), "hello"); err == nil {
		t.Fatalf("expected empty response error")
	}
}

func TestGenerateSurfacesOllamaErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llava\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "llava", testExecutor())
	_, err := NewRecognizer(client).Recognize(context.Background(), []byte("img"), "image/png")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "try pulling it first") {
		t.Fatalf("expected decoded ollama message, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("missing model should not be temporary, got %v", err)
	}
}

func TestGenerateRejectsTruncatedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"Claim number 12","done":true,"done_reason":"length"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "", testExecutor())
	_, err := NewGenerator(client).Generate(context.Background(), "hello")
	if !errors.Is(err, errTruncatedResponse) {
		t.Fatalf("expected truncated response error, got %v", err)
	}
}
