package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// ErrParse means the judge's answer held no usable JSON object.
var ErrParse = errors.New("could not parse judge output")

// ParseVerdict reads a judge response. It first decodes the whole trimmed text
// as a JSON object; failing that it decodes the greedy span from the first '{'
// to the last '}'. Anything else is ErrParse. Prose containing braces before
// the real payload therefore fails, which the loop recovers from with a
// fallback revision.
func ParseVerdict(raw string) (Verdict, error) {
	text := strings.TrimSpace(raw)

	obj, err := decodeObject(text)
	if err == nil {
		return verdictFromObject(obj), nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		obj, spanErr := decodeObject(text[start : end+1])
		if spanErr == nil {
			return verdictFromObject(obj), nil
		}
		err = spanErr
	}
	return Verdict{}, fmt.Errorf("%w: %v", ErrParse, err)
}

// decodeObject strictly decodes s as a single JSON object.
func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("judge output is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON object")
	}
	return obj, nil
}

func verdictFromObject(obj map[string]any) Verdict {
	v := Verdict{Scores: map[Criterion]int{}}

	switch p := obj["pass"].(type) {
	case bool:
		v.Pass = p
	case string:
		v.Pass = strings.EqualFold(strings.TrimSpace(p), "true")
	}

	if scores, ok := obj["scores"].(map[string]any); ok {
		for k, raw := range scores {
			if n, ok := toInt(raw); ok {
				v.Scores[Criterion(k)] = n
			}
		}
	}
	v.Issues = toStrings(obj["issues"])
	v.RevisionInstructions = toStrings(obj["revision_instructions"])
	return v
}

// toInt accepts integer scores and rounds fractional ones. Numeric strings are
// tolerated because some models quote their numbers.
func toInt(raw any) (int, bool) {
	var num json.Number
	switch x := raw.(type) {
	case json.Number:
		num = x
	case string:
		num = json.Number(strings.TrimSpace(x))
	default:
		return 0, false
	}
	if i, err := num.Int64(); err == nil {
		return int(i), true
	}
	f, err := num.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}

func toStrings(raw any) []string {
	switch x := raw.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case nil:
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out
	case string:
		// A single instruction sent as a bare string.
		if strings.TrimSpace(x) != "" {
			return []string{x}
		}
	}
	return nil
}

// FormatJudgeDebug summarizes the last verdict of h on one line.
func FormatJudgeDebug(h History) string {
	last, ok := h.Last()
	if !ok {
		return "No judge history."
	}
	return fmt.Sprintf("pass=%t | scores: %s | issues: %s", last.Pass, ScoreSummary(last), quoteList(last.Issues))
}

// ScoreSummary renders scores as "k=v, k=v" in rubric order.
func ScoreSummary(v Verdict) string {
	parts := make([]string, 0, len(v.Scores))
	for _, c := range v.scoreOrder() {
		parts = append(parts, fmt.Sprintf("%s=%d", c, v.Scores[c]))
	}
	return strings.Join(parts, ", ")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
