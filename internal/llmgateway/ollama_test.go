package llmgateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/patrickmvla/rift-copilot/internal/apierr"
)

func TestOllamaBackendGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"hi from ollama"}}`))
	}))
	defer srv.Close()

	backend := NewOllamaBackend(srv.URL)
	got, err := backend.Generate(context.Background(), "llama-test", Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "hi from ollama" {
		t.Errorf("got %q", got)
	}
}

func TestOllamaBackendStreamForwardsDeltasUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		lines := []string{
			`{"message":{"content":"one "},"done":false}`,
			`{"message":{"content":"two"},"done":false}`,
			`{"message":{"content":""},"done":true}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	backend := NewOllamaBackend(srv.URL)
	ch, err := backend.Stream(context.Background(), "llama-test", Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var sb strings.Builder
	for d := range ch {
		if d.Err != nil {
			t.Fatalf("unexpected delta error: %v", d.Err)
		}
		sb.WriteString(d.Text)
	}
	if sb.String() != "one two" {
		t.Errorf("got %q", sb.String())
	}
}

func TestOllamaBackendIsConfiguredFalseWhenUnreachable(t *testing.T) {
	backend := NewOllamaBackend("http://127.0.0.1:1")
	if backend.IsConfigured() {
		t.Error("expected unreachable ollama to report unconfigured")
	}
}

func TestOllamaBackendGenerateClassifiesCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"hi"}}`))
	}))
	defer srv.Close()

	backend := NewOllamaBackend(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Generate(ctx, "llama-test", Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if !apierr.IsCancelled(err) {
		t.Errorf("expected a Cancelled kind, got %v", err)
	}
}
