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

	config "taskmaster/app/configs"
)

// Client talks to a local Ollama daemon over its generate and tags
// endpoints.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	topP        float64
	maxTokens   int

	httpClient   *http.Client
	healthClient *http.Client
}

func NewClient(cfg config.OllamaConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "llama2"
	}
	generateTimeout := time.Duration(cfg.GenerateTimeoutSec) * time.Second
	if generateTimeout <= 0 {
		generateTimeout = 30 * time.Second
	}
	healthTimeout := time.Duration(cfg.HealthTimeoutSec) * time.Second
	if healthTimeout <= 0 {
		healthTimeout = 5 * time.Second
	}

	return &Client{
		baseURL:      baseURL,
		model:        model,
		temperature:  cfg.Temperature,
		topP:         cfg.TopP,
		maxTokens:    cfg.MaxTokens,
		httpClient:   &http.Client{Timeout: generateTimeout},
		healthClient: &http.Client{Timeout: healthTimeout},
	}
}

func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
	System  string          `json:"system,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends one prompt to the generate endpoint and returns the trimmed
// reply text.
func (c *Client) Generate(ctx context.Context, prompt string, system string) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.temperature,
			TopP:        c.topP,
			MaxTokens:   c.maxTokens,
		},
		System: system,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}

// Health reports daemon availability and whether the configured model is
// pulled. It never returns an error; failures come back as an unavailable
// status.
type Health struct {
	Status         string   `json:"status"`
	Models         []string `json:"models,omitempty"`
	CurrentModel   string   `json:"current_model,omitempty"`
	ModelAvailable bool     `json:"model_available"`
	Error          string   `json:"error,omitempty"`
	Message        string   `json:"message,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *Client) Health(ctx context.Context) Health {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return unavailable(err)
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unavailable(fmt.Errorf("ollama returned status %d", resp.StatusCode))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return unavailable(err)
	}

	names := make([]string, 0, len(tags.Models))
	available := false
	for _, m := range tags.Models {
		names = append(names, m.Name)
		if strings.Contains(m.Name, c.model) {
			available = true
		}
	}

	return Health{
		Status:         "available",
		Models:         names,
		CurrentModel:   c.model,
		ModelAvailable: available,
	}
}

func unavailable(err error) Health {
	return Health{
		Status:  "unavailable",
		Error:   err.Error(),
		Message: "Ollama is not running or unreachable",
	}
}
