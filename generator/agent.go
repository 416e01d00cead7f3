package generator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"bedtime_story_generator/llm"
)

// CallParams 一类模型调用的采样参数。
type CallParams struct {
	MaxTokens   int
	Temperature float64
}

// AgentConfig 按调用用途区分的参数：初稿温度高一些保证多样性，评审用 0 保证评分稳定。
type AgentConfig struct {
	Draft    CallParams
	Judge    CallParams
	Revise   CallParams
	Fallback CallParams
	Feedback CallParams

	// StrictPass 要求评审的 pass 与本地规则计算结果一致才算通过。
	StrictPass bool
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Draft:    CallParams{MaxTokens: 1400, Temperature: 0.8},
		Judge:    CallParams{MaxTokens: 600, Temperature: 0.0},
		Revise:   CallParams{MaxTokens: 1400, Temperature: 0.7},
		Fallback: CallParams{MaxTokens: 1400, Temperature: 0.7},
		Feedback: CallParams{MaxTokens: 1400, Temperature: 0.7},
	}
}

const (
	DefaultGenerateRounds = 3
	DefaultFeedbackRounds = 2
)

// Observer 接收每个循环的结束状态（可选，用于指标）。
type Observer interface {
	ObserveLoop(loop, outcome string, rounds, judged int)
}

// Option customizes an Agent.
type Option func(*Agent)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(a *Agent) { a.observer = o }
}

// Agent 负责根据用户请求生成、评审并修订故事。
type Agent struct {
	llm      llm.Client
	cfg      AgentConfig
	logger   *zap.Logger
	observer Observer
}

func NewAgent(client llm.Client, cfg AgentConfig, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	a := &Agent{llm: client, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Options controls one Generate call.
type Options struct {
	MaxRounds int
	Params    StoryParams
}

// DefaultOptions runs three rounds on the default story parameters.
func DefaultOptions() Options {
	return Options{MaxRounds: DefaultGenerateRounds, Params: DefaultStoryParams()}
}

// Generate 生成首稿，然后最多评审/修订 opts.MaxRounds 轮。
// 轮数用尽不算错误：返回最后一稿，Outcome 为 StateExhausted。
func (a *Agent) Generate(ctx context.Context, req StoryRequest, opts Options) (Result, error) {
	return a.run(ctx, req, loopPlan{
		name:   "generate",
		rounds: opts.MaxRounds,
		initial: func(ctx context.Context) (string, error) {
			return a.story(ctx, llm.PurposeDraft, a.cfg.Draft, BuildStoryPrompt(req, opts.Params))
		},
		fallback: BuildFallbackPrompt,
	})
}

// ApplyFeedback 按用户反馈改写故事，再走同样的评审/修订循环。空反馈原样发送。
func (a *Agent) ApplyFeedback(ctx context.Context, req StoryRequest, story, feedback string, maxRounds int) (Result, error) {
	return a.run(ctx, req, loopPlan{
		name:   "feedback",
		rounds: maxRounds,
		initial: func(ctx context.Context) (string, error) {
			return a.story(ctx, llm.PurposeFeedback, a.cfg.Feedback, BuildFeedbackRevisionPrompt(req, story, feedback))
		},
		fallback: BuildFeedbackFallbackPrompt,
	})
}

// story 调用模型产出故事并做后处理。
func (a *Agent) story(ctx context.Context, purpose llm.Purpose, p CallParams, prompt string) (string, error) {
	raw, err := a.complete(ctx, purpose, p, prompt)
	if err != nil {
		return "", err
	}
	return PostProcess(raw)
}

func (a *Agent) complete(ctx context.Context, purpose llm.Purpose, p CallParams, prompt string) (string, error) {
	return a.llm.Complete(ctx, llm.Request{
		Purpose:     purpose,
		Prompt:      prompt,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
}
