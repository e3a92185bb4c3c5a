package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/verisum/internal/model"
)

// Provider sends one system+user exchange to a language model
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete returns the model's reply to the prompt
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	System    string
	Prompt    string
	Model     string
	MaxTokens int
	JSON      bool // Ask the provider for a JSON object reply where supported
}

// CompletionResponse is the model's reply
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	Provider  string // "openai", "anthropic"/"claude", "ollama", or "" for disabled
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	MaxTokens int

	// HTTPClient carries proxy settings; nil builds a plain client with Timeout
	HTTPClient *http.Client
}

// resolve picks the model and token budget for one request: the request's
// own values, then the provider config, then the fallbacks
func (c Config) resolve(req CompletionRequest, fallbackModel string) (string, int) {
	name := req.Model
	if name == "" {
		name = c.Model
	}
	if name == "" {
		name = fallbackModel
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return name, maxTokens
}

// client returns the shared HTTP client, or a fresh one bounded by Timeout
// (fallback when unset)
func (c Config) client(fallback time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{Timeout: timeout}
}

const analysisSystem = "You are a careful fact-checking assistant. You assess whether a passage from a web page is likely misinformation. You reply with a single JSON object and nothing else."

// BuildAnalysisPrompt asks for a verdict on a flagged passage
func BuildAnalysisPrompt(req model.FlagRequest) string {
	var b strings.Builder
	b.WriteString("Assess the following passage from ")
	b.WriteString(req.URL)
	b.WriteString(".\n\nPASSAGE:\n")
	b.WriteString(req.Text)
	b.WriteString("\n")
	if req.Context != "" {
		b.WriteString("\nSURROUNDING TEXT:\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
	}
	if req.Reason != "" {
		b.WriteString("\nREADER'S CONCERN:\n")
		b.WriteString(req.Reason)
		b.WriteString("\n")
	}
	b.WriteString(`
Reply with JSON of the form:
{"verdict": "TRUE|FALSE|MISLEADING|UNVERIFIED", "confidence": 0-100, "reasoning": "one or two sentences", "suggested_sources": ["https://..."]}

confidence is how likely the passage is misinformation: 0 means certainly accurate, 100 certainly false.
Only list sources you are confident exist. Use UNVERIFIED when you cannot tell.`)
	return b.String()
}

// analysisReply is the JSON shape requested by BuildAnalysisPrompt
type analysisReply struct {
	Verdict          string   `json:"verdict"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	SuggestedSources []string `json:"suggested_sources"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseAnalysis decodes a model reply into an analysis result. Replies wrapped
// in prose or code fences are accepted as long as they contain one JSON object.
func ParseAnalysis(text string) (*model.AnalysisResult, error) {
	raw := jsonObjectRe.FindString(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var reply analysisReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	confidence := int(reply.Confidence + 0.5)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	sources := make([]string, 0, len(reply.SuggestedSources))
	for _, s := range reply.SuggestedSources {
		sources = append(sources, extractURLs(s)...)
	}

	return &model.AnalysisResult{
		Verdict:          model.ParseVerdict(strings.ToUpper(strings.TrimSpace(reply.Verdict))),
		Confidence:       confidence,
		Reasoning:        strings.TrimSpace(reply.Reasoning),
		SuggestedSources: sources,
	}, nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)"']+`)

// extractURLs extracts all http(s) URLs from text, deduplicated
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		// Clean up trailing punctuation
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}

	return unique
}
