package llm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/verisum/internal/model"
	"github.com/ppiankov/verisum/internal/util"
)

type constructor func(Config) (Provider, error)

// providers maps config names, aliases included, to constructors
var providers = map[string]constructor{
	"openai":    func(c Config) (Provider, error) { return NewOpenAIProvider(c) },
	"anthropic": func(c Config) (Provider, error) { return NewAnthropicProvider(c) },
	"claude":    func(c Config) (Provider, error) { return NewAnthropicProvider(c) },
	"ollama":    func(c Config) (Provider, error) { return NewOllamaProvider(c) },
}

// NewProvider builds the provider named in config. An empty name disables
// analysis and returns nil, nil.
func NewProvider(config Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(config.Provider))
	if name == "" {
		return nil, nil
	}

	build, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (supported: %s)", config.Provider, strings.Join(providerNames(), ", "))
	}
	return build(config)
}

func providerNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigFromModel turns the analysis section of the app config into a
// provider config sharing the outbound proxy settings
func ConfigFromModel(llmConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	timeout := time.Duration(llmConfig.Timeout) * time.Second
	httpConfig.Timeout = timeout

	return Config{
		Provider:   llmConfig.Provider,
		Model:      llmConfig.Model,
		APIKey:     llmConfig.APIKey,
		BaseURL:    llmConfig.BaseURL,
		Timeout:    timeout,
		MaxTokens:  llmConfig.MaxTokens,
		HTTPClient: util.NewHTTPClient(httpConfig),
	}
}
