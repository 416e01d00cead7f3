package llm_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bedtime_story_generator/llm"
	"bedtime_story_generator/llm/llmtest"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose stats worker starts at package init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func tagging(tag string, order *[]string) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(next, func(ctx context.Context, req llm.Request) (string, error) {
			*order = append(*order, tag)
			return next.Complete(ctx, req)
		})
	}
}

func TestChain_OrderAndNilSkipping(t *testing.T) {
	var order []string
	base := llmtest.New().On(llm.PurposeDraft, "story")

	client := llm.Chain(base, tagging("outer", &order), nil, tagging("inner", &order))
	out, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeDraft})

	require.NoError(t, err)
	assert.Equal(t, "story", out)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "scripted", client.Model())
}

type flaky struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (f *flaky) Complete(context.Context, llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func (f *flaky) Model() string { return "flaky" }

func fastPolicy(attempts int) llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestWithRetry_RetriesTransientErrors(t *testing.T) {
	base := &flaky{failures: 2, err: &llm.Error{Kind: llm.KindTransient, Err: errors.New("503")}}
	client := llm.Chain(base, llm.WithRetry(fastPolicy(3), zap.NewNop()))

	out, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeJudge})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, base.calls)
}

func TestWithRetry_DoesNotRetryAuthErrors(t *testing.T) {
	authErr := &llm.Error{Kind: llm.KindAuth, Err: errors.New("invalid api key")}
	base := &flaky{failures: 5, err: authErr}
	client := llm.Chain(base, llm.WithRetry(fastPolicy(3), nil))

	_, err := client.Complete(context.Background(), llm.Request{})

	require.ErrorIs(t, err, authErr)
	assert.Equal(t, 1, base.calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	base := &flaky{failures: 10, err: &llm.Error{Kind: llm.KindRateLimit, Err: errors.New("429")}}
	client := llm.Chain(base, llm.WithRetry(fastPolicy(2), nil))

	_, err := client.Complete(context.Background(), llm.Request{})

	require.Error(t, err)
	assert.Equal(t, llm.KindRateLimit, llm.Classify(err))
	assert.Equal(t, 2, base.calls)
}

func TestWithRetry_SingleAttemptIsNoMiddleware(t *testing.T) {
	assert.Nil(t, llm.WithRetry(llm.DefaultRetryPolicy, nil))
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := llm.RetryPolicy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 3*time.Second, p.Delay(4), "capped at MaxDelay")

	p.Jitter = true
	d := p.Delay(2)
	assert.GreaterOrEqual(t, d, 900*time.Millisecond)
	assert.LessOrEqual(t, d, 1100*time.Millisecond)
}

type blocking struct{}

func (blocking) Complete(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blocking) Model() string { return "blocking" }

func TestWithTimeout_BoundsEachCall(t *testing.T) {
	client := llm.Chain(blocking{}, llm.WithTimeout(5*time.Millisecond))

	_, err := client.Complete(context.Background(), llm.Request{})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, llm.KindTransient, llm.Classify(err))
}

func TestRejectEmpty(t *testing.T) {
	base := llmtest.New().On(llm.PurposeRevise, "  \n\t ").On(llm.PurposeDraft, "fine")
	client := llm.Chain(base, llm.RejectEmpty())

	_, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeRevise})
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Equal(t, llm.KindEmptyResponse, llm.Classify(err))
	assert.True(t, llm.Classify(err).Retryable())

	out, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeDraft})
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestRejectEmpty_JudgePassesThrough(t *testing.T) {
	base := llmtest.New().On(llm.PurposeJudge, "   ")
	client := llm.Chain(base, llm.RejectEmpty())

	out, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeJudge})
	require.NoError(t, err)
	assert.Equal(t, "   ", out)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want llm.Kind
	}{
		{"nil", nil, ""},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), llm.KindCanceled},
		{"deadline", context.DeadlineExceeded, llm.KindTransient},
		{"openai 429", &openai.Error{StatusCode: 429}, llm.KindRateLimit},
		{"openai 401", &openai.Error{StatusCode: 401}, llm.KindAuth},
		{"openai 500", &openai.Error{StatusCode: 500}, llm.KindTransient},
		{"openai 400", &openai.Error{StatusCode: 400}, llm.KindBadRequest},
		{"classified wins", &llm.Error{Kind: llm.KindAuth, Err: errors.New("503")}, llm.KindAuth},
		{"string rate limit", errors.New("rate limit reached"), llm.KindRateLimit},
		{"string connection", errors.New("connection reset by peer"), llm.KindTransient},
		{"string unauthorized", errors.New("HTTP 401 Unauthorized"), llm.KindAuth},
		{"unknown", errors.New("something odd"), llm.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, llm.Classify(tt.err))
		})
	}
}

type recordedRequest struct {
	model, purpose string
	success        bool
	errorKind      string
	prompt, output int
}

type fakeRecorder struct {
	requests []recordedRequest
}

func (f *fakeRecorder) ObserveRequest(model, purpose string, success bool, errorKind string, promptTokens, completionTokens int, _ time.Duration) {
	f.requests = append(f.requests, recordedRequest{model, purpose, success, errorKind, promptTokens, completionTokens})
}

func TestWithMetrics_RecordsSuccessAndFailure(t *testing.T) {
	rec := &fakeRecorder{}
	base := llmtest.New().
		On(llm.PurposeDraft, "twelve chars").
		Fail(llm.PurposeJudge, &llm.Error{Kind: llm.KindAuth, Err: errors.New("nope")})
	client := llm.Chain(base, llm.WithMetrics(rec, nil))

	_, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeDraft, Prompt: "0123456789abcdef"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeJudge})
	require.Error(t, err)

	require.Len(t, rec.requests, 2)
	assert.Equal(t, recordedRequest{"scripted", "draft", true, "", 4, 3}, rec.requests[0])
	assert.Equal(t, recordedRequest{"scripted", "judge", false, "auth", 0, 0}, rec.requests[1])
}

func TestWithLogging_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := llmtest.New().On(llm.PurposeDraft, "story").Fail(llm.PurposeJudge, errors.New("connection refused"))
	client := llm.Chain(base, llm.WithLogging(zap.New(core), nil))

	_, _ = client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeDraft})
	_, _ = client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeJudge})

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "llm call completed", entries[0].Message)
	assert.Equal(t, "llm call failed", entries[1].Message)
	assert.Equal(t, "transient", entries[1].ContextMap()["error_kind"])
}

func TestNew_ProviderValidation(t *testing.T) {
	_, err := llm.New(llm.Settings{})
	require.Error(t, err)

	_, err = llm.New(llm.Settings{Provider: "carrier-pigeon"})
	require.ErrorContains(t, err, "not supported")

	_, err = llm.New(llm.Settings{Provider: llm.ProviderDeepSeek, APIKey: "k"})
	require.ErrorContains(t, err, "base_url")

	_, err = llm.New(llm.Settings{Provider: llm.ProviderOpenAI})
	require.ErrorContains(t, err, "api key")

	client, err := llm.New(llm.Settings{Provider: llm.ProviderOpenAI, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.Model())

	client, err = llm.New(llm.Settings{Provider: llm.ProviderOllama, Model: "mistral"})
	require.NoError(t, err)
	assert.Equal(t, "mistral", client.Model())
}

func TestMockClient(t *testing.T) {
	client, err := llm.Build(llm.Settings{Provider: llm.ProviderMock, TimeoutSeconds: 5}, llm.StackOptions{Retry: llm.DefaultRetryPolicy})
	require.NoError(t, err)

	verdict, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeJudge})
	require.NoError(t, err)
	assert.Contains(t, verdict, `"pass": true`)

	story, err := client.Complete(context.Background(), llm.Request{Purpose: llm.PurposeDraft})
	require.NoError(t, err)
	assert.Contains(t, story, "Alice")
}

func TestTokenCounter(t *testing.T) {
	counter, err := llm.NewTokenCounter()
	require.NoError(t, err)
	assert.Positive(t, counter.Count("Once upon a time, a sleepy cat yawned."))
	assert.Equal(t, 0, counter.Count(""))

	var nilCounter *llm.TokenCounter
	assert.Equal(t, 2, nilCounter.Count("12345678"))
}
