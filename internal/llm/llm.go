package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/TobiSchelling/KeywordGap/internal/config"
)

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
	Name() string
}

const (
	openAIURL        = "https://api.openai.com/v1"
	anthropicURL     = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// postJSON sends body to url and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// OllamaProvider is a local Ollama LLM provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OllamaProvider) Name() string { return "ollama/" + o.Model }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	slog.Warn("ollama model not found", "model", o.Model)
	return false
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0.3,
		},
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/chat", nil, body, &result); err != nil {
		return "", fmt.Errorf("ollama API: %w", err)
	}

	return result.Message.Content, nil
}

// OpenAIProvider is an OpenAI API provider.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKeyEnv string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: openAIURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIProvider) Name() string { return "openai/" + o.Model }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a prompt to OpenAI and returns the response.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  maxTokens,
		"temperature": 0.3,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}
	if err := postJSON(ctx, o.client, o.BaseURL+"/chat/completions", headers, body, &result); err != nil {
		return "", fmt.Errorf("OpenAI API: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	return result.Choices[0].Message.Content, nil
}

// AnthropicProvider is an Anthropic Messages API provider.
type AnthropicProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(model, apiKeyEnv string) *AnthropicProvider {
	return &AnthropicProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: anthropicURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *AnthropicProvider) Name() string { return "anthropic/" + a.Model }

// IsConfigured checks if the API key is set.
func (a *AnthropicProvider) IsConfigured() bool {
	return a.APIKey != ""
}

// Generate sends a prompt to Anthropic and returns the concatenated text
// blocks of the reply.
func (a *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if a.APIKey == "" {
		return "", fmt.Errorf("Anthropic API key not configured")
	}

	body := map[string]any{
		"model":      a.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}
	if err := postJSON(ctx, a.client, a.BaseURL+"/messages", headers, body, &result); err != nil {
		return "", fmt.Errorf("Anthropic API: %w", err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text in Anthropic response")
	}
	return sb.String(), nil
}

// CreateProvider creates an LLM provider based on configuration. The
// configured provider is tried first, then Ollama, OpenAI and Anthropic in
// that order. Returns nil when none is available.
func CreateProvider(cfg config.Insights) Provider {
	candidates := map[string]func() Provider{
		"ollama":    func() Provider { return NewOllamaProvider(cfg.Model, cfg.OllamaURL) },
		"openai":    func() Provider { return NewOpenAIProvider(cfg.OpenAIModel, cfg.APIKeyEnv) },
		"anthropic": func() Provider { return NewAnthropicProvider(cfg.AnthropicModel, cfg.AnthropicKeyEnv) },
	}

	order := []string{"ollama", "openai", "anthropic"}
	preferred := strings.ToLower(cfg.Provider)
	if _, ok := candidates[preferred]; ok {
		order = append([]string{preferred}, order...)
	}

	tried := make(map[string]bool)
	for _, name := range order {
		if tried[name] {
			continue
		}
		tried[name] = true

		p := candidates[name]()
		if p.IsConfigured() {
			slog.Info("using LLM provider", "provider", p.Name())
			return p
		}
		slog.Debug("LLM provider not available", "provider", name)
	}

	slog.Warn("no LLM provider available; check Ollama is running or set an API key",
		"openai_key_env", cfg.APIKeyEnv, "anthropic_key_env", cfg.AnthropicKeyEnv)
	return nil
}
