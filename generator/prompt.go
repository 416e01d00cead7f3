package generator

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

var lengthGuidance = map[Length]string{
	LengthShort:  "350-550 words",
	LengthMedium: "700-1000 words",
	LengthLong:   "1100-1500 words",
}

var styleGuidance = map[Style]string{
	StyleCalm:      "gentle, cozy, and bedtime-soothing",
	StyleFunny:     "lightly funny and playful (no sarcasm, no meanness)",
	StyleAdventure: "mild adventure with low-stakes tension, never scary",
	StyleMoral:     "warm lesson (sharing, kindness, honesty) without sounding preachy",
}

// BuildStoryPrompt 生成首稿提示词。未知的长度/风格按 medium、calm 处理，年龄范围无效时用 5-10。
func BuildStoryPrompt(req StoryRequest, p StoryParams) string {
	if p.AgeMin <= 0 || p.AgeMax < p.AgeMin {
		p.AgeMin, p.AgeMax = 5, 10
	}
	length, ok := lengthGuidance[p.Length]
	if !ok {
		length = lengthGuidance[LengthMedium]
	}
	style, ok := styleGuidance[p.Style]
	if !ok {
		style = styleGuidance[StyleCalm]
	}
	ages := fmt.Sprintf("%d-%d", p.AgeMin, p.AgeMax)

	var sb strings.Builder
	sb.WriteString("You are a children's bedtime story writer.\n\n")
	sb.WriteString("Write ONE complete bedtime story based on the user's request below.\n\n")
	fmt.Fprintf(&sb, "User request:\n%s\n\n", req)
	fmt.Fprintf(&sb, "Target audience:\nChildren ages %s.\n\n", ages)
	sb.WriteString("Hard requirements:\n")
	fmt.Fprintf(&sb, "- Keep language simple, vivid, and easy to follow for ages %s.\n", ages)
	fmt.Fprintf(&sb, "- Use a %s tone.\n", style)
	fmt.Fprintf(&sb, "- Length: %s.\n", length)
	sb.WriteString("- Structure: clear beginning → middle → ending, with a satisfying positive resolution.\n")
	sb.WriteString("- Avoid: graphic violence, death, abuse, horror, intense peril, or anything that could cause nightmares.\n")
	sb.WriteString("- If conflict exists, keep it low-stakes and resolve it gently.\n")
	sb.WriteString("- End with a comforting final paragraph that helps the child feel safe and ready to sleep.\n")
	sb.WriteString("- No meta-talk (do not mention prompts, policies, or that you are an AI).\n\n")
	sb.WriteString("Nice-to-have:\n")
	sb.WriteString("- A few bits of dialogue.\n")
	sb.WriteString("- A small recurring cozy motif (e.g., a star, a lullaby, a warm blanket).\n\n")
	sb.WriteString("Output:\nOnly the story text. No bullet points.")
	return sb.String()
}

type judgeScores struct {
	AgeAppropriateness int `json:"age_appropriateness" jsonschema:"minimum=1,maximum=5"`
	Clarity            int `json:"clarity" jsonschema:"minimum=1,maximum=5"`
	Engagement         int `json:"engagement" jsonschema:"minimum=1,maximum=5"`
	BedtimeTone        int `json:"bedtime_tone" jsonschema:"minimum=1,maximum=5"`
	Structure          int `json:"structure" jsonschema:"minimum=1,maximum=5"`
	RequestFit         int `json:"request_fit" jsonschema:"minimum=1,maximum=5"`
	Safety             int `json:"safety" jsonschema:"minimum=1,maximum=5"`
}

// judgeSchema is the wire contract the judge must answer with.
type judgeSchema struct {
	Pass                 bool        `json:"pass"`
	Scores               judgeScores `json:"scores"`
	Issues               []string    `json:"issues" jsonschema_description:"short phrases describing problems"`
	RevisionInstructions []string    `json:"revision_instructions" jsonschema_description:"specific instructions that would raise the scores"`
}

var (
	judgeSchemaOnce sync.Once
	judgeSchemaText string
)

// JudgeSchema returns the indented JSON schema embedded in judge prompts.
func JudgeSchema() string {
	judgeSchemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
			Anonymous:                 true,
		}
		schema := reflector.Reflect(&judgeSchema{})
		schema.Version = ""
		b, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			panic(fmt.Sprintf("marshal judge schema: %v", err))
		}
		judgeSchemaText = string(b)
	})
	return judgeSchemaText
}

// BuildJudgePrompt 生成评审提示词，要求返回 JSON。
func BuildJudgePrompt(req StoryRequest, story string) string {
	var sb strings.Builder
	sb.WriteString("You are a strict quality judge for children's bedtime stories.\n\n")
	sb.WriteString("Evaluate the story against the user's request and the target audience (ages 5-10).\n\n")
	fmt.Fprintf(&sb, "User request:\n%s\n\n", req)
	fmt.Fprintf(&sb, "Story:\n\"\"\"%s\"\"\"\n\n", story)
	sb.WriteString("Return ONLY valid JSON (no markdown, no extra text) matching this JSON schema:\n\n")
	sb.WriteString(JudgeSchema())
	sb.WriteString("\n\nGuidelines:\n")
	sb.WriteString("- \"safety\" must be 5 only if there is no scary content, no harmful themes, and conflict is gentle.\n")
	sb.WriteString("- \"bedtime_tone\" should be high if it feels soothing and ends with comfort.\n")
	sb.WriteString("- \"request_fit\" should be high if it clearly matches the user's request details.\n")
	sb.WriteString("- Set pass=true ONLY if:\n")
	sb.WriteString("  - safety >= 5,\n")
	sb.WriteString("  - age_appropriateness >= 4,\n")
	sb.WriteString("  - request_fit >= 4,\n")
	sb.WriteString("  - and at least 4 of the remaining categories are >= 4.\n")
	sb.WriteString("- If pass=false, provide 2-6 concrete revision_instructions that would raise the score.\n\n")
	sb.WriteString("Return ONLY JSON.")
	return sb.String()
}

// BuildRevisionPrompt 生成修订提示词，按评审意见做最小改动。
func BuildRevisionPrompt(req StoryRequest, story string, v Verdict) string {
	var sb strings.Builder
	sb.WriteString("You are revising a children's bedtime story for ages 5-10.\n\n")
	fmt.Fprintf(&sb, "User request:\n%s\n\n", req)
	fmt.Fprintf(&sb, "Original story:\n\"\"\"%s\"\"\"\n\n", story)
	sb.WriteString("Judge feedback (issues):\n")
	writeBullets(&sb, v.Issues)
	sb.WriteString("\nApply these revision instructions carefully:\n")
	writeBullets(&sb, v.RevisionInstructions)
	sb.WriteString("\nRules:\n")
	sb.WriteString("- Keep what already works; only change what is needed.\n")
	sb.WriteString("- Maintain a gentle, bedtime-soothing tone.\n")
	sb.WriteString("- Ensure the final paragraph is comforting and sleep-ready.\n")
	sb.WriteString("- Do NOT add scary or intense elements.\n")
	sb.WriteString("- Output ONLY the revised story text (no JSON, no headings).\n\n")
	sb.WriteString("Revised story:")
	return sb.String()
}

// BuildFeedbackRevisionPrompt applies the user's change request, softening
// anything unsafe into a cozy equivalent.
func BuildFeedbackRevisionPrompt(req StoryRequest, story, feedback string) string {
	var sb strings.Builder
	sb.WriteString("You are revising a children's bedtime story for ages 5-10.\n\n")
	fmt.Fprintf(&sb, "Original user request:\n%s\n\n", req)
	fmt.Fprintf(&sb, "User feedback / change request:\n%s\n\n", feedback)
	fmt.Fprintf(&sb, "Current story:\n\"\"\"%s\"\"\"\n\n", story)
	sb.WriteString("Revise the story to satisfy the user's feedback while keeping:\n")
	sb.WriteString("- age-appropriate language (5-10),\n")
	sb.WriteString("- gentle bedtime tone,\n")
	sb.WriteString("- safe, non-scary content,\n")
	sb.WriteString("- a comforting sleep-ready ending.\n\n")
	sb.WriteString("If the user's feedback conflicts with bedtime safety (e.g., scary/violent), soften it into something safe and cozy.\n\n")
	sb.WriteString("Output ONLY the revised story text.")
	return sb.String()
}

// BuildFallbackPrompt is the generic rewrite used when the judge's answer
// cannot be parsed during generation.
func BuildFallbackPrompt(req StoryRequest, story string) string {
	return fallbackPrompt(
		"Revise this bedtime story for ages 5-10 to better match the user's request, improve clarity,\n"+
			"increase bedtime calmness, and ensure gentle safety. Keep a comforting sleep-ready ending.",
		req, story)
}

// BuildFeedbackFallbackPrompt is the feedback-loop variant. It leaves out the
// request-matching goal since the story already reflects the user's edits.
func BuildFeedbackFallbackPrompt(req StoryRequest, story string) string {
	return fallbackPrompt(
		"Revise this bedtime story for ages 5-10 to improve clarity, bedtime calmness,\n"+
			"and ensure gentle safety. Keep a comforting sleep-ready ending.",
		req, story)
}

func fallbackPrompt(goal string, req StoryRequest, story string) string {
	return fmt.Sprintf("%s\n\nUser request:\n%s\n\nStory:\n\"\"\"%s\"\"\"\n\nOutput ONLY the revised story.", goal, req, story)
}

func writeBullets(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("- (none)\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
