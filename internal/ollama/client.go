package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Error kinds reported by the completion boundary. Callers match with
// errors.Is to pick a status code or retry decision; the client itself
// never retries.
var (
	ErrUnavailable   = errors.New("ollama unreachable")
	ErrService       = errors.New("ollama returned an error")
	ErrProtocol      = errors.New("unexpected ollama response")
	ErrEmptyResponse = errors.New("empty ollama response")
)

// ChatMessage is one role/content pair sent to or received from the
// model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelInfo describes one model available at the endpoint.
type ModelInfo struct {
	Name       string     `json:"name"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	SizeBytes  *int64     `json:"size,omitempty"`
}

// Endpoint yields the current base URL of the generation service. It
// is read on every request and may be updated concurrently by a
// settings writer, so implementations must be safe for that.
type Endpoint interface {
	URL() string
}

// Client is a stateless adapter to an Ollama-compatible endpoint. The
// HTTP client timeout is the only deadline imposed here; expiry
// surfaces as ErrUnavailable.
type Client struct {
	endpoint   Endpoint
	httpClient *http.Client
}

// NewClient creates a completion client reading its base URL from
// endpoint on every call.
func NewClient(endpoint Endpoint, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Status reports whether the endpoint answers its model listing route.
// Unreachability is a normal state, never an error.
func (c *Client) Status(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.URL()+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels fetches the models installed at the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.URL()+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed tagsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProtocol, truncate(string(body), 400))
	}
	return parsed.Models, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message *ChatMessage `json:"message"`
	Done    bool         `json:"done"`
}

// Chat sends the full ordered history in one non-streamed request and
// returns the assistant reply content. A zero-length history is legal
// and goes out as an empty messages array.
func (c *Client) Chat(ctx context.Context, model string, history []ChatMessage) (string, error) {
	if history == nil {
		history = []ChatMessage{}
	}

	payload, err := json.Marshal(chatRequest{Model: model, Messages: history, Stream: false})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL()+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %s", ErrProtocol, truncate(string(body), 400))
	}
	if parsed.Message == nil || strings.TrimSpace(parsed.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return parsed.Message.Content, nil
}

// do executes the request and returns the body of a successful
// response, mapping transport and status failures to error kinds.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrService, resp.StatusCode, truncate(string(body), 400))
	}
	return body, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
