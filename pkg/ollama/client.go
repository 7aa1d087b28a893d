// Package ollama is a minimal client for the two Ollama endpoints Verba
// needs: text generation and embeddings.
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

	"github.com/verba-ai/verba/pkg/config"
	"github.com/verba-ai/verba/pkg/models"
	"github.com/verba-ai/verba/pkg/vector"
)

// ErrUnavailable is returned when the Ollama server cannot be reached.
var ErrUnavailable = errors.New("ollama server unavailable")

// Client talks to an Ollama server.
type Client struct {
	cfg  config.OllamaConfig
	http *http.Client
}

// New creates a Client from configuration. A nil httpClient falls back
// to http.DefaultClient.
func New(cfg config.OllamaConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Generate produces an answer to prompt, with the conversation history
// flattened into the prompt as "role: content" lines.
func (c *Client) Generate(ctx context.Context, prompt string, history []models.ChatMessage) (string, error) {
	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "user: %s\nassistant:", prompt)

	req := generateRequest{
		Model:   c.cfg.Model,
		Prompt:  b.String(),
		Stream:  false,
		Options: generateOptions{Temperature: c.cfg.Temperature},
	}

	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Embed returns a unit-length embedding for text. The vector is
// L2-normalized so inner products between embeddings are cosine
// similarities.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	req := embedRequest{Model: c.cfg.EmbedModel, Input: text}

	var resp embedResponse
	if err := c.post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding for input")
	}
	return vector.Normalize(resp.Embeddings[0]), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
