package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to a local or remote Ollama instance over its JSON API.
// Requests are non-streaming; the caller gets the full generated text.
type OllamaClient struct {
	baseURL      string
	defaultModel string
	numPredict   int
	temperature  float64
	topP         float64
	httpClient   *http.Client
}

// OllamaOptions configures an OllamaClient.
type OllamaOptions struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	NumPredict   int
	Temperature  float64
	TopP         float64
}

// NewOllamaClient creates a client. Zero option fields get the defaults the
// original deployment used (localhost:11434, llama2:7b, 2 minute timeout).
func NewOllamaClient(opts OllamaOptions) *OllamaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "llama2:7b"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.NumPredict == 0 {
		opts.NumPredict = 500
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.TopP == 0 {
		opts.TopP = 0.9
	}
	return &OllamaClient{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		defaultModel: opts.DefaultModel,
		numPredict:   opts.NumPredict,
		temperature:  opts.Temperature,
		topP:         opts.TopP,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate calls /api/generate and returns the generated text. An empty
// model falls back to the client default.
func (c *OllamaClient) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	if model == "" {
		model = c.defaultModel
	}
	reqBody, err := json.Marshal(generateRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.temperature,
			TopP:        c.topP,
			NumPredict:  c.numPredict,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if out.Response == "" {
		return "", fmt.Errorf("ollama returned empty response")
	}
	return out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Status probes /api/tags and reports availability plus the installed models.
// Connection failures yield an unavailable status, not an error.
func (c *OllamaClient) Status(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Status{Available: false}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Status{Available: false}, nil
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return &Status{Available: false}, nil
	}
	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return &Status{Available: true, Models: models}, nil
}
