// Package config loads the storyteller's settings from defaults, an optional
// .env file, an optional JSON or YAML file and environment overrides, in that
// order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bedtime_story_generator/generator"
	"bedtime_story_generator/llm"
)

// Config holds everything main needs to wire a session.
type Config struct {
	LLM         LLMConfig   `json:"llm" yaml:"llm"`
	Retry       RetryConfig `json:"retry" yaml:"retry"`
	Story       StoryConfig `json:"story" yaml:"story"`
	MetricsAddr string      `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// LLMConfig selects and authenticates the model provider.
type LLMConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// APIKeyEnv names the environment variable holding the key when APIKey is empty.
	APIKeyEnv      string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// RetryConfig is the boundary retry policy. One attempt means no retries.
type RetryConfig struct {
	MaxAttempts    int `json:"max_attempts" yaml:"max_attempts"`
	InitialDelayMS int `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelayMS     int `json:"max_delay_ms" yaml:"max_delay_ms"`
}

// StoryConfig holds the story defaults and loop budgets.
type StoryConfig struct {
	Length         string `json:"length" yaml:"length"`
	Style          string `json:"style" yaml:"style"`
	Rounds         int    `json:"rounds" yaml:"rounds"`
	FeedbackRounds int    `json:"feedback_rounds" yaml:"feedback_rounds"`
	FeedbackEdits  int    `json:"feedback_edits" yaml:"feedback_edits"`
	StrictPass     bool   `json:"strict_pass" yaml:"strict_pass"`
}

// Environment variables read by Load.
const (
	EnvProvider = "STORY_LLM_PROVIDER"
	EnvModel    = "STORY_LLM_MODEL"
	EnvBaseURL  = "STORY_LLM_BASE_URL"
)

var providerKeyEnv = map[string]string{
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderDeepSeek:  "DEEPSEEK_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
	llm.ProviderGemini:    "GEMINI_API_KEY",
}

// Default returns the built-in settings: OpenAI, medium calm stories, three
// generation rounds, two feedback rounds and three feedback edits.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:       llm.ProviderOpenAI,
			TimeoutSeconds: 120,
		},
		Retry: RetryConfig{
			MaxAttempts:    1,
			InitialDelayMS: 500,
			MaxDelayMS:     10000,
		},
		Story: StoryConfig{
			Length:         string(generator.LengthMedium),
			Style:          string(generator.StyleCalm),
			Rounds:         generator.DefaultGenerateRounds,
			FeedbackRounds: generator.DefaultFeedbackRounds,
			FeedbackEdits:  3,
		},
	}
}

// Load builds a Config. An empty path skips the file; a missing .env is ignored.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvProvider); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if c.LLM.APIKey != "" {
		return
	}
	name := c.LLM.APIKeyEnv
	if name == "" {
		name = providerKeyEnv[c.LLM.Provider]
	}
	if name != "" {
		c.LLM.APIKey = getenv(name)
	}
}

// Validate rejects settings no session could run with.
func (c Config) Validate() error {
	var errs []error
	if c.LLM.Provider == "" {
		errs = append(errs, errors.New("llm.provider is required"))
	} else if !slices.Contains(llm.Providers(), c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider %q not supported (want one of %s)",
			c.LLM.Provider, strings.Join(llm.Providers(), ", ")))
	}
	if c.LLM.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("llm.timeout_seconds must not be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if _, err := generator.ParseLength(c.Story.Length); err != nil {
		errs = append(errs, fmt.Errorf("story.length: %w", err))
	}
	if _, err := generator.ParseStyle(c.Story.Style); err != nil {
		errs = append(errs, fmt.Errorf("story.style: %w", err))
	}
	if c.Story.Rounds < 0 || c.Story.FeedbackRounds < 0 {
		errs = append(errs, errors.New("story rounds must not be negative"))
	}
	if c.Story.FeedbackEdits < 1 {
		errs = append(errs, errors.New("story.feedback_edits must be at least 1"))
	}
	return errors.Join(errs...)
}

// LLMSettings converts the llm section for llm.Build.
func (c Config) LLMSettings() llm.Settings {
	return llm.Settings{
		Provider:       c.LLM.Provider,
		Model:          c.LLM.Model,
		APIKey:         c.LLM.APIKey,
		BaseURL:        c.LLM.BaseURL,
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// RetryPolicy converts the retry section, keeping the default backoff shape.
func (c Config) RetryPolicy() llm.RetryPolicy {
	p := llm.DefaultRetryPolicy
	p.MaxAttempts = c.Retry.MaxAttempts
	if c.Retry.InitialDelayMS > 0 {
		p.InitialDelay = time.Duration(c.Retry.InitialDelayMS) * time.Millisecond
	}
	if c.Retry.MaxDelayMS > 0 {
		p.MaxDelay = time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
	}
	return p
}

// AgentConfig returns the call settings for generator.NewAgent.
func (c Config) AgentConfig() generator.AgentConfig {
	cfg := generator.DefaultAgentConfig()
	cfg.StrictPass = c.Story.StrictPass
	return cfg
}

// SessionConfig returns the loop budgets and story parameters. Validate must
// have passed.
func (c Config) SessionConfig() generator.SessionConfig {
	length, _ := generator.ParseLength(c.Story.Length)
	style, _ := generator.ParseStyle(c.Story.Style)
	params := generator.DefaultStoryParams()
	params.Length = length
	params.Style = style
	return generator.SessionConfig{
		Generate:       generator.Options{MaxRounds: c.Story.Rounds, Params: params},
		FeedbackRounds: c.Story.FeedbackRounds,
	}
}
