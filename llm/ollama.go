package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// OllamaClient implements Client against a local Ollama runtime.
type OllamaClient struct {
	client *api.Client
	model  string
}

func NewOllamaClient(cfg Settings) (*OllamaClient, error) {
	host := cfg.BaseURL
	if host == "" {
		host = defaultOllamaHost
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base_url %q: %w", host, err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaClient{client: api.NewClient(parsed, http.DefaultClient), model: model}, nil
}

func (o *OllamaClient) Complete(ctx context.Context, req Request) (string, error) {
	stream := false
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	chatReq := &api.ChatRequest{
		Model:    o.model,
		Messages: []api.Message{{Role: "user", Content: req.Prompt}},
		Stream:   &stream,
		Options:  options,
	}

	var content string
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", wrapProviderError(ProviderOllama, err)
	}
	return content, nil
}

func (o *OllamaClient) Model() string {
	return o.model
}
