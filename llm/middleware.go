package llm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// WithTimeout bounds every call with its own deadline so a hung request cannot
// block the session forever.
func WithTimeout(d time.Duration) Middleware {
	return func(next Client) Client {
		return WrapClient(next, func(ctx context.Context, req Request) (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(callCtx, req)
		})
	}
}

// RejectEmpty turns a whitespace-only answer into a classified empty-response error.
// Judge replies pass through untouched; an empty verdict is a parse failure for
// the story loop to handle.
func RejectEmpty() Middleware {
	return func(next Client) Client {
		return WrapClient(next, func(ctx context.Context, req Request) (string, error) {
			out, err := next.Complete(ctx, req)
			if err != nil || req.Purpose == PurposeJudge {
				return out, err
			}
			if strings.TrimSpace(out) == "" {
				return "", &Error{Kind: KindEmptyResponse, Provider: next.Model(), Err: ErrEmptyResponse}
			}
			return out, nil
		})
	}
}

// WithLogging logs every call at debug level and failures at warn level.
// A nil logger disables the middleware.
func WithLogging(logger *zap.Logger, counter *TokenCounter) Middleware {
	if logger == nil {
		return nil
	}
	return func(next Client) Client {
		return WrapClient(next, func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			out, err := next.Complete(ctx, req)
			fields := []zap.Field{
				zap.String("model", next.Model()),
				zap.String("purpose", string(req.Purpose)),
				zap.Float64("temperature", req.Temperature),
				zap.Int("max_tokens", req.MaxTokens),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				logger.Warn("llm call failed", append(fields, zap.String("error_kind", string(Classify(err))), zap.Error(err))...)
				return out, err
			}
			if counter != nil {
				fields = append(fields,
					zap.Int("prompt_tokens", counter.Count(req.Prompt)),
					zap.Int("completion_tokens", counter.Count(out)))
			}
			logger.Debug("llm call completed", fields...)
			return out, nil
		})
	}
}
