package llm

import (
	"context"
	"time"
)

// Recorder receives one observation per model call.
type Recorder interface {
	ObserveRequest(model, purpose string, success bool, errorKind string, promptTokens, completionTokens int, duration time.Duration)
}

// WithMetrics reports every call to recorder. A nil recorder disables it.
func WithMetrics(recorder Recorder, counter *TokenCounter) Middleware {
	if recorder == nil {
		return nil
	}
	return func(next Client) Client {
		return WrapClient(next, func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			out, err := next.Complete(ctx, req)
			duration := time.Since(start)

			var promptTokens, completionTokens int
			if err == nil {
				promptTokens = counter.Count(req.Prompt)
				completionTokens = counter.Count(out)
			}
			recorder.ObserveRequest(next.Model(), string(req.Purpose), err == nil, string(Classify(err)),
				promptTokens, completionTokens, duration)
			return out, err
		})
	}
}
