package generator

import (
	"context"
	"errors"
	"time"
)

// Turn 记录一次生成或反馈修订。
type Turn struct {
	Feedback  string
	Story     string
	History   History
	Outcome   State
	CreatedAt time.Time
}

// SessionConfig 会话内两个循环的轮数预算。
type SessionConfig struct {
	Generate       Options
	FeedbackRounds int
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{Generate: DefaultOptions(), FeedbackRounds: DefaultFeedbackRounds}
}

// Session 持有一次交互的请求和当前故事，只有循环成功返回才替换故事。
type Session struct {
	ID      string
	Request StoryRequest
	Story   string
	Turns   []Turn
	cfg     SessionConfig
	agent   *Agent
}

// NewSession 创建 session，尚未生成故事。
func NewSession(id string, req StoryRequest, agent *Agent, cfg SessionConfig) *Session {
	if req == "" {
		req = DefaultRequest
	}
	return &Session{
		ID:      id,
		Request: req,
		cfg:     cfg,
		agent:   agent,
	}
}

// Propose 生成首个故事。
func (s *Session) Propose(ctx context.Context) (Result, error) {
	res, err := s.agent.Generate(ctx, s.Request, s.cfg.Generate)
	if err != nil {
		return Result{}, err
	}
	s.Story = res.Story
	s.appendTurn("", res)
	return res, nil
}

// Revise 基于用户反馈修订当前故事。
func (s *Session) Revise(ctx context.Context, feedback string) (Result, error) {
	if s.Story == "" {
		return Result{}, errors.New("no story to revise; call Propose first")
	}
	res, err := s.agent.ApplyFeedback(ctx, s.Request, s.Story, feedback, s.cfg.FeedbackRounds)
	if err != nil {
		return Result{}, err
	}
	s.Story = res.Story
	s.appendTurn(feedback, res)
	return res, nil
}

func (s *Session) appendTurn(feedback string, res Result) {
	s.Turns = append(s.Turns, Turn{
		Feedback:  feedback,
		Story:     res.Story,
		History:   res.History,
		Outcome:   res.Outcome,
		CreatedAt: time.Now(),
	})
}
