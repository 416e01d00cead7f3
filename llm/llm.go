// Package llm is the model invoker: a single synchronous completion call with
// pluggable providers and middleware around it.
package llm

import "context"

// Purpose labels why a call is made. It is carried for logging, metrics and
// test doubles and never changes how a provider builds its request.
type Purpose string

const (
	PurposeDraft    Purpose = "draft"
	PurposeJudge    Purpose = "judge"
	PurposeRevise   Purpose = "revise"
	PurposeFallback Purpose = "fallback"
	PurposeFeedback Purpose = "feedback"
)

// Request is one prompt sent to the model.
type Request struct {
	Purpose     Purpose
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client abstracts the model so providers and fakes are interchangeable.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Settings is what the providers need to be built. It is filled by the config
// package; nothing in this package reads the environment.
type Settings struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

const (
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Providers lists every provider name New accepts.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderGemini, ProviderOllama, ProviderMock}
}
