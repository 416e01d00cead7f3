package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// New builds the raw provider client for settings.Provider.
func New(settings Settings) (Client, error) {
	switch settings.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(settings)
	case ProviderDeepSeek:
		// DeepSeek exposes an OpenAI-compatible API and needs its endpoint spelled out.
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAIClient(settings)
	case ProviderAnthropic:
		return NewAnthropicClient(settings)
	case ProviderGemini:
		return NewGeminiClient(settings)
	case ProviderOllama:
		return NewOllamaClient(settings)
	case ProviderMock:
		return MockClient{}, nil
	case "":
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	default:
		return nil, fmt.Errorf("llm provider %s not supported", settings.Provider)
	}
}

// StackOptions selects the middleware wrapped around a provider by Build.
type StackOptions struct {
	Retry    RetryPolicy
	Recorder Recorder
	Counter  *TokenCounter
	Logger   *zap.Logger
}

// Build creates the provider for settings and wraps it with the standard chain:
// logging -> metrics -> retry -> timeout -> empty-response check -> provider.
func Build(settings Settings, opts StackOptions) (Client, error) {
	base, err := New(settings)
	if err != nil {
		return nil, err
	}
	var timeout Middleware
	if settings.TimeoutSeconds > 0 {
		timeout = WithTimeout(time.Duration(settings.TimeoutSeconds) * time.Second)
	}
	return Chain(base,
		WithLogging(opts.Logger, opts.Counter),
		WithMetrics(opts.Recorder, opts.Counter),
		WithRetry(opts.Retry, opts.Logger),
		timeout,
		RejectEmpty(),
	), nil
}
