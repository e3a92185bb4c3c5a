package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ppiankov/verisum/internal/model"
)

// DefaultHistory is how many recent questions are remembered
const DefaultHistory = 10

// Retriever supplies passages for a question
type Retriever interface {
	Retrieve(ctx context.Context, query string) (model.RetrievalResult, error)
}

// Snapshot is the answer so far. The last snapshot on a channel has Done set.
type Snapshot struct {
	Answer  string         `json:"answer"`
	Sources []model.Source `json:"sources"` // Sources cited so far
	Prompt  string         `json:"prompt"`
	Done    bool           `json:"done"`
	Err     error          `json:"-"`
	Error   string         `json:"error,omitempty"`
}

// Config configures the chat model used for answers
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	History    int
	HTTPClient *http.Client
}

// Answerer answers questions about the indexed page
type Answerer struct {
	client    *openai.Client
	model     string
	maxTokens int
	retriever Retriever
	logger    *zap.Logger

	mu          sync.Mutex
	history     []string
	historySize int
}

// NewAnswerer creates an answerer over retriever
func NewAnswerer(retriever Retriever, config Config, logger *zap.Logger) (*Answerer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("answer model API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.History <= 0 {
		config.History = DefaultHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.HTTPClient != nil {
		clientConfig.HTTPClient = config.HTTPClient
	}

	return &Answerer{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		retriever:   retriever,
		logger:      logger,
		historySize: config.History,
	}, nil
}

// Ask streams answer snapshots for query. The channel is closed after the
// final Done snapshot, or without one if ctx is cancelled.
func (a *Answerer) Ask(ctx context.Context, title, query string) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		a.run(ctx, title, query, out)
	}()
	return out
}

func (a *Answerer) run(ctx context.Context, title, query string, out chan<- Snapshot) {
	emit := func(s Snapshot) bool {
		if ctx.Err() != nil {
			return false
		}
		if s.Err != nil {
			s.Error = s.Err.Error()
		}
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(prompt string, err error) {
		emit(Snapshot{Prompt: prompt, Done: true, Err: err})
	}

	if strings.TrimSpace(query) == "" {
		fail("", fmt.Errorf("ask: empty question: %w", model.ErrInvalidInput))
		return
	}
	a.remember(query)

	retrieved, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		fail("", err)
		return
	}
	prompt := BuildPrompt(retrieved.DocumentParts, title, query)

	stream, err := a.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: a.maxTokens,
		Stream:    true,
	})
	if err != nil {
		fail(prompt, fmt.Errorf("answer stream: %w: %v", model.ErrModelUnavailable, err))
		return
	}
	defer func() { _ = stream.Close() }()

	var answer strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(prompt, fmt.Errorf("answer stream: %w: %v", model.ErrModelUnavailable, err))
			return
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}

		answer.WriteString(resp.Choices[0].Delta.Content)
		text := answer.String()
		if !emit(Snapshot{
			Answer:  text,
			Sources: ExtractCitedSources(text, retrieved.Sources),
			Prompt:  prompt,
		}) {
			return
		}
	}

	text := answer.String()
	a.logger.Debug("answer complete",
		zap.String("model", a.model),
		zap.Int("passages", len(retrieved.DocumentParts)),
		zap.Int("chars", len(text)))

	emit(Snapshot{
		Answer:  text,
		Sources: ExtractCitedSources(text, retrieved.Sources),
		Prompt:  prompt,
		Done:    true,
	})
}

// Final drains snapshots and returns the last one
func Final(snapshots <-chan Snapshot) (Snapshot, error) {
	var last Snapshot
	for s := range snapshots {
		last = s
	}
	if !last.Done {
		return last, context.Canceled
	}
	return last, last.Err
}

func (a *Answerer) remember(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, query)
	if len(a.history) > a.historySize {
		a.history = a.history[len(a.history)-a.historySize:]
	}
}

// History returns recent questions, oldest first
func (a *Answerer) History() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.history))
	copy(out, a.history)
	return out
}
