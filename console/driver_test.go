package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime_story_generator/generator"
	"bedtime_story_generator/llm"
	"bedtime_story_generator/llm/llmtest"
)

const passJSON = `{"pass": true, "scores": {"age_appropriateness": 5, "clarity": 5, "engagement": 5, "bedtime_tone": 5, "structure": 5, "request_fit": 5, "safety": 5}, "issues": ["none"]}`

func newDriver(t *testing.T, client llm.Client, input string, opts Options) (*Driver, *bytes.Buffer) {
	t.Helper()
	agent, err := generator.NewAgent(client, generator.DefaultAgentConfig())
	require.NoError(t, err)
	var out bytes.Buffer
	return New(strings.NewReader(input), &out, agent, generator.DefaultSessionConfig(), opts), &out
}

func TestRun_AcceptFirstStory(t *testing.T) {
	client := llmtest.New().On(llm.PurposeDraft, "The owl hooted softly.").On(llm.PurposeJudge, passJSON)
	d, out := newDriver(t, client, "an owl\n\n", Options{})

	require.NoError(t, d.Run(context.Background()))

	bar := strings.Repeat("-", 100)
	want := requestPrompt +
		"\n" + bar + "\nSTORY\n" + bar + "\n\nThe owl hooted softly.\n" +
		feedbackPrompt + "\nStory accepted.\n" +
		"\nGoodnight, Sweet Dreams!\n"
	assert.Equal(t, want, out.String())
	assert.Contains(t, client.Calls()[0].Prompt, "an owl")
	assert.Zero(t, client.Count(llm.PurposeFeedback))
}

func TestRun_EmptyRequestUsesDefault(t *testing.T) {
	client := llmtest.New().On(llm.PurposeJudge, passJSON)
	d, _ := newDriver(t, client, "\n\n", Options{})

	require.NoError(t, d.Run(context.Background()))

	assert.Contains(t, client.Calls()[0].Prompt, string(generator.DefaultRequest))
}

func TestRun_FeedbackEditsAreBounded(t *testing.T) {
	client := llmtest.New().
		On(llm.PurposeDraft, "story 0").
		On(llm.PurposeFeedback, "story 1", "story 2", "story 3").
		On(llm.PurposeJudge, passJSON)
	d, out := newDriver(t, client, "bears\nshorter\nfunnier\nmore honey\neven more\n", Options{})

	require.NoError(t, d.Run(context.Background()))

	text := out.String()
	assert.Equal(t, 3, client.Count(llm.PurposeFeedback))
	for _, h := range []string{"UPDATED STORY (edit 1)", "UPDATED STORY (edit 2)", "UPDATED STORY (edit 3)"} {
		assert.Contains(t, text, h)
	}
	assert.NotContains(t, text, "UPDATED STORY (edit 4)")
	assert.NotContains(t, text, "Story accepted.")
	assert.True(t, strings.HasSuffix(text, "\nstory 3\n\nGoodnight, Sweet Dreams!\n"))
	assert.Contains(t, text, strings.Repeat("=", 60)+"\nUPDATED STORY (edit 2)\n"+strings.Repeat("=", 60)+"\n\nstory 2\n")

	calls := client.Calls()
	var feedback []string
	for _, c := range calls {
		if c.Purpose == llm.PurposeFeedback {
			feedback = append(feedback, c.Prompt)
		}
	}
	require.Len(t, feedback, 3)
	assert.Contains(t, feedback[0], "shorter")
	assert.Contains(t, feedback[1], `"""story 1"""`)
	assert.Contains(t, feedback[2], "more honey")
}

func TestRun_MaxEditsOption(t *testing.T) {
	client := llmtest.New().On(llm.PurposeJudge, passJSON)
	d, _ := newDriver(t, client, "bears\nshorter\nfunnier\n", Options{MaxEdits: 1})

	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 1, client.Count(llm.PurposeFeedback))
}

func TestRun_EOFAcceptsStory(t *testing.T) {
	client := llmtest.New().On(llm.PurposeJudge, passJSON)
	d, out := newDriver(t, client, "a fox", Options{})

	require.NoError(t, d.Run(context.Background()))

	assert.Contains(t, client.Calls()[0].Prompt, "a fox")
	assert.Contains(t, out.String(), "Story accepted.")
}

func TestRun_ShowJudge(t *testing.T) {
	client := llmtest.New().On(llm.PurposeJudge, passJSON)
	d, out := newDriver(t, client, "cats\n\n", Options{ShowJudge: true})

	require.NoError(t, d.Run(context.Background()))

	assert.Contains(t, out.String(), "JUDGE SUMMARY (debug)")
	assert.Contains(t, out.String(), `pass=true | scores: age_appropriateness=5`)
	assert.Contains(t, out.String(), `issues: ["none"]`)
}

func TestRun_ModelErrorEndsSession(t *testing.T) {
	boom := errors.New("connection refused")
	client := llmtest.New().Fail(llm.PurposeDraft, boom)
	d, out := newDriver(t, client, "cats\n", Options{})

	err := d.Run(context.Background())

	require.ErrorIs(t, err, boom)
	assert.NotContains(t, out.String(), "Goodnight")
}

func TestTell(t *testing.T) {
	client := llmtest.New().On(llm.PurposeDraft, "# Moon\n\nThe *moon* glowed.").On(llm.PurposeJudge, passJSON)
	d, out := newDriver(t, client, "", Options{})

	res, err := d.Tell(context.Background(), "the moon")

	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Contains(t, out.String(), "STORY")
	assert.Contains(t, out.String(), "Moon\n\nThe moon glowed.\n")
	assert.NotContains(t, out.String(), "Any changes?")
}
