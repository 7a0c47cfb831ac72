package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/taloschat/talos/internal/config"
	"github.com/taloschat/talos/internal/ollama"
)

func newClient(url string) *ollama.Client {
	return ollama.NewClient(config.NewEndpoint(url), 5*time.Second)
}

func TestStatusReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	if !newClient(server.URL).Status(context.Background()) {
		t.Fatal("expected true for reachable endpoint")
	}
}

func TestStatusUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	// Unreachability is a value, not an error.
	if newClient(server.URL).Status(context.Background()) {
		t.Fatal("expected false for unreachable endpoint")
	}
}

func TestStatusNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if newClient(server.URL).Status(context.Background()) {
		t.Fatal("expected false for failing endpoint")
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llama3", "modified_at": "2025-06-01T10:00:00Z", "size": 4661224676},
				{"name": "mistral"},
			},
		})
	}))
	defer server.Close()

	models, err := newClient(server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Name != "llama3" {
		t.Errorf("expected llama3, got %q", models[0].Name)
	}
	if models[0].SizeBytes == nil || *models[0].SizeBytes != 4661224676 {
		t.Errorf("unexpected size: %v", models[0].SizeBytes)
	}
	if models[1].ModifiedAt != nil {
		t.Errorf("expected nil modified_at for mistral")
	}
}

func TestListModelsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newClient(server.URL).ListModels(context.Background())
	if !errors.Is(err, ollama.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestListModelsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := newClient(server.URL).ListModels(context.Background())
	if !errors.Is(err, ollama.ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model    string               `json:"model"`
			Messages []ollama.ChatMessage `json:"messages"`
			Stream   bool                 `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Stream {
			t.Error("stream must be false")
		}
		if req.Model != "modelX" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected history: %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hi there"},
			"done":    true,
		})
	}))
	defer server.Close()

	reply, err := newClient(server.URL).Chat(context.Background(), "modelX", []ollama.ChatMessage{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "hi there" {
		t.Fatalf("expected 'hi there', got %q", reply)
	}
}

func TestChatEmptyHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatal(err)
		}
		// Zero history must serialize as [], not null.
		if string(raw["messages"]) != "[]" {
			t.Errorf("expected empty array, got %s", raw["messages"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hello!"},
			"done":    true,
		})
	}))
	defer server.Close()

	if _, err := newClient(server.URL).Chat(context.Background(), "m", nil); err != nil {
		t.Fatal(err)
	}
}

func TestChatServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL).Chat(context.Background(), "m", nil)
	if !errors.Is(err, ollama.ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestChatProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>surprise</html>"))
	}))
	defer server.Close()

	_, err := newClient(server.URL).Chat(context.Background(), "m", nil)
	if !errors.Is(err, ollama.ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestChatEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"done": true})
	}))
	defer server.Close()

	_, err := newClient(server.URL).Chat(context.Background(), "m", nil)
	if !errors.Is(err, ollama.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestEndpointSwitchVisibleToClient(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"models": []map[string]any{{"name": "old"}}})
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"models": []map[string]any{{"name": "new"}}})
	}))
	defer second.Close()

	endpoint := config.NewEndpoint(first.URL)
	client := ollama.NewClient(endpoint, 5*time.Second)

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if models[0].Name != "old" {
		t.Fatalf("expected old, got %q", models[0].Name)
	}

	endpoint.Set(second.URL)

	models, err = client.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if models[0].Name != "new" {
		t.Fatalf("expected new after endpoint switch, got %q", models[0].Name)
	}
}
