package generator

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// StoryRequest 用户的原始请求，每个会话只记录一次，原样带入所有提示词。
type StoryRequest string

// DefaultRequest 用户未输入时使用。
const DefaultRequest StoryRequest = "A story about a girl named Alice and her best friend Bob, who happens to be a cat."

// Length selects the target word range of a story.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// ParseLength accepts short, medium or long in any case.
func ParseLength(s string) (Length, error) {
	l := Length(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return l, nil
	}
	return "", fmt.Errorf("unknown story length %q (want short, medium or long)", s)
}

// Style selects the tone of a story.
type Style string

const (
	StyleCalm      Style = "calm"
	StyleFunny     Style = "funny"
	StyleAdventure Style = "adventure"
	StyleMoral     Style = "moral"
)

// ParseStyle accepts calm, funny, adventure or moral in any case.
func ParseStyle(s string) (Style, error) {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StyleCalm, StyleFunny, StyleAdventure, StyleMoral:
		return st, nil
	}
	return "", fmt.Errorf("unknown story style %q (want calm, funny, adventure or moral)", s)
}

// StoryParams 控制首稿提示词。
type StoryParams struct {
	AgeMin int
	AgeMax int
	Length Length
	Style  Style
}

// DefaultStoryParams targets ages 5-10 with a medium, calm story.
func DefaultStoryParams() StoryParams {
	return StoryParams{AgeMin: 5, AgeMax: 10, Length: LengthMedium, Style: StyleCalm}
}

// Criterion names one rubric score.
type Criterion string

const (
	AgeAppropriateness Criterion = "age_appropriateness"
	Clarity            Criterion = "clarity"
	Engagement         Criterion = "engagement"
	BedtimeTone        Criterion = "bedtime_tone"
	Structure          Criterion = "structure"
	RequestFit         Criterion = "request_fit"
	Safety             Criterion = "safety"
)

// Criteria returns the rubric in the order the judge is asked to score it.
func Criteria() []Criterion {
	return []Criterion{AgeAppropriateness, Clarity, Engagement, BedtimeTone, Structure, RequestFit, Safety}
}

const (
	MinScore = 1
	MaxScore = 5
)

// Verdict 一次评审的解析结果，缺失字段取零值。
type Verdict struct {
	Pass                 bool
	Scores               map[Criterion]int
	Issues               []string
	RevisionInstructions []string
}

// Score returns the score for c and whether the judge reported it.
func (v Verdict) Score(c Criterion) (int, bool) {
	s, ok := v.Scores[c]
	return s, ok
}

// ScoreOr returns the score for c, or def when it is missing.
func (v Verdict) ScoreOr(c Criterion, def int) int {
	if s, ok := v.Scores[c]; ok {
		return s
	}
	return def
}

// PolicyPass evaluates the rubric the judge is told to apply: safety 5,
// age_appropriateness and request_fit at least 4, and at least 4 of the
// remaining criteria at least 4. Missing scores count as failing.
func (v Verdict) PolicyPass() bool {
	if v.ScoreOr(Safety, 0) < 5 || v.ScoreOr(AgeAppropriateness, 0) < 4 || v.ScoreOr(RequestFit, 0) < 4 {
		return false
	}
	good := 0
	for _, c := range []Criterion{Clarity, Engagement, BedtimeTone, Structure} {
		if v.ScoreOr(c, 0) >= 4 {
			good++
		}
	}
	return good >= 4
}

// OutOfRange lists criteria whose score falls outside 1-5, in rubric order
// followed by any extra keys the judge invented.
func (v Verdict) OutOfRange() []Criterion {
	var out []Criterion
	for _, c := range v.scoreOrder() {
		if s := v.Scores[c]; s < MinScore || s > MaxScore {
			out = append(out, c)
		}
	}
	return out
}

// scoreOrder lists the reported criteria: rubric ones first, then unknown keys sorted.
func (v Verdict) scoreOrder() []Criterion {
	var known, extra []Criterion
	for _, c := range Criteria() {
		if _, ok := v.Scores[c]; ok {
			known = append(known, c)
		}
	}
	for c := range v.Scores {
		if !slices.Contains(Criteria(), c) {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(known, extra...)
}

// History 每个成功解析的评审轮次一条记录。
type History []Verdict

// Last returns the most recent verdict.
func (h History) Last() (Verdict, bool) {
	if len(h) == 0 {
		return Verdict{}, false
	}
	return h[len(h)-1], true
}

// State is a step of the judge/revise loop.
type State int

const (
	StateDrafted State = iota
	StateJudging
	StateParseFailed
	StateRevising
	StatePassed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateDrafted:
		return "drafted"
	case StateJudging:
		return "judging"
	case StateParseFailed:
		return "parse_failed"
	case StateRevising:
		return "revising"
	case StatePassed:
		return "passed"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is what a loop hands back. Outcome is StatePassed or StateExhausted;
// Rounds counts the judge calls made, including rounds lost to parse failures.
type Result struct {
	Story   string
	History History
	Outcome State
	Rounds  int
}

// Passed reports whether the loop ended on a passing verdict.
func (r Result) Passed() bool {
	return r.Outcome == StatePassed
}

var (
	// ErrInvalidRounds is returned for a negative round budget.
	ErrInvalidRounds = errors.New("round budget must not be negative")
	// ErrEmptyStory is returned when a story-producing call yields no text.
	ErrEmptyStory = errors.New("model returned an empty story")
)
