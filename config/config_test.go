package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedtime_story_generator/generator"
	"bedtime_story_generator/llm"
)

// clearEnv unsets the variables Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvProvider, EnvModel, EnvBaseURL,
		"OPENAI_API_KEY", "DEEPSEEK_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "MY_STORY_KEY"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Story.Rounds)
	assert.Equal(t, 2, cfg.Story.FeedbackRounds)
	assert.Equal(t, 3, cfg.Story.FeedbackEdits)
	assert.Equal(t, "medium", cfg.Story.Length)
	assert.Equal(t, "calm", cfg.Story.Style)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "story.yaml", `
llm:
  provider: anthropic
  model: claude-haiku-4-5
  timeout_seconds: 30
retry:
  max_attempts: 3
story:
  style: funny
  rounds: 5
  strict_pass: true
`)
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-haiku-4-5", cfg.LLM.Model)
	assert.Equal(t, "ak-test", cfg.LLM.APIKey)
	assert.Equal(t, 30, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, "funny", cfg.Story.Style)
	assert.Equal(t, "medium", cfg.Story.Length, "keys absent from the file keep their defaults")
	assert.Equal(t, 5, cfg.Story.Rounds)
	assert.True(t, cfg.AgentConfig().StrictPass)

	p := cfg.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.InitialDelay)
}

func TestLoad_JSONFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.json", `{
  "llm": {"provider": "openai", "model": "gpt-4o", "api_key": "sk-file", "api_key_env": "MY_STORY_KEY"},
  "story": {"length": "short", "feedback_rounds": 1}
}`)
	t.Setenv(EnvProvider, "deepseek")
	t.Setenv(EnvBaseURL, "https://api.deepseek.com/v1")
	t.Setenv("MY_STORY_KEY", "ignored because api_key is set")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "https://api.deepseek.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "sk-file", cfg.LLM.APIKey)

	sc := cfg.SessionConfig()
	assert.Equal(t, generator.LengthShort, sc.Generate.Params.Length)
	assert.Equal(t, generator.StyleCalm, sc.Generate.Params.Style)
	assert.Equal(t, 1, sc.FeedbackRounds)
	assert.Equal(t, 3, sc.Generate.MaxRounds)
}

func TestLoad_CustomKeyEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "config.json", `{"llm": {"provider": "gemini", "api_key_env": "MY_STORY_KEY"}}`)
	t.Setenv("MY_STORY_KEY", "g-key")
	t.Setenv("GEMINI_API_KEY", "not this one")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "STORY_LLM_PROVIDER=mock\nSTORY_LLM_MODEL=from-dotenv\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderMock, cfg.LLM.Provider)
	assert.Equal(t, "from-dotenv", cfg.LLM.Model)
	assert.Equal(t, "mock", cfg.LLMSettings().Provider)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load(filepath.Join(dir, "missing.json"))
	require.ErrorContains(t, err, "read config")

	bad := writeFile(t, dir, "bad.json", `{"llm": `)
	_, err = Load(bad)
	require.ErrorContains(t, err, "parse config")

	invalid := writeFile(t, dir, "invalid.yml", "llm:\n  provider: carrier-pigeon\nstory:\n  style: spooky\n  rounds: -1\n")
	_, err = Load(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "story.style")
	assert.Contains(t, err.Error(), "must not be negative")
}

func TestValidate_RetryAttempts(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 0
	require.ErrorContains(t, cfg.Validate(), "retry.max_attempts")
}

func TestValidate_FeedbackEdits(t *testing.T) {
	cfg := Default()
	cfg.Story.FeedbackEdits = 0
	require.ErrorContains(t, cfg.Validate(), "story.feedback_edits")

	cfg.Story.FeedbackEdits = 1
	require.NoError(t, cfg.Validate())
}
