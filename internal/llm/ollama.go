package llm

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

const defaultOllamaURL = "http://localhost:11434"

// OllamaProvider talks to a local Ollama server through /api/chat
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

// NewOllamaProvider creates an Ollama provider. Local models are slow to
// load, so the default timeout is longer than for hosted APIs.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: config.client(60 * time.Second),
		config:     config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	name, maxTokens := p.config.resolve(req, "")
	if name == "" {
		return nil, errors.New("ollama needs a model name, e.g. llama3.1:8b")
	}

	chat := ollamaChatRequest{
		Model:   name,
		Options: map[string]any{"temperature": 0.2, "num_predict": maxTokens},
	}
	if req.System != "" {
		chat.Messages = append(chat.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	chat.Messages = append(chat.Messages, ollamaMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		chat.Format = "json"
	}

	resp, err := p.chat(ctx, chat)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Message.Content)
	used := resp.PromptEvalCount + resp.EvalCount
	if used == 0 {
		// Some models report no counts; estimate at four bytes per token
		used = (len(req.System) + len(req.Prompt) + len(text)) / 4
	}
	return &CompletionResponse{Text: text, Model: resp.Model, TokensUsed: used}, nil
}

func (p *OllamaProvider) chat(ctx context.Context, chat ollamaChatRequest) (*ollamaChatResponse, error) {
	body, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp ollamaChatResponse
	decodeErr := json.Unmarshal(raw, &resp)
	if httpResp.StatusCode != http.StatusOK {
		if decodeErr == nil && resp.Error != "" {
			return nil, fmt.Errorf("ollama chat (%d): %s", httpResp.StatusCode, resp.Error)
		}
		return nil, fmt.Errorf("ollama chat (%d): %s", httpResp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode chat response: %w", decodeErr)
	}
	return &resp, nil
}
