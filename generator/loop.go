package generator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bedtime_story_generator/llm"
)

// loopPlan is what differs between the generate and feedback loops.
type loopPlan struct {
	name     string
	rounds   int
	initial  func(ctx context.Context) (string, error)
	fallback func(req StoryRequest, story string) string
}

// run is the shared judge/revise machine:
//
//	drafted -> judging -> passed
//	             |  \-> revising -> judging
//	             \-> parse_failed -> revising -> judging
//
// and exhausted once the budget is spent. A parse failure costs a round but
// adds nothing to the history.
func (a *Agent) run(ctx context.Context, req StoryRequest, plan loopPlan) (Result, error) {
	if plan.rounds < 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidRounds, plan.rounds)
	}
	log := a.logger.With(zap.String("loop", plan.name))

	story, err := plan.initial(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%s call: %w", plan.name, err)
	}
	res := Result{Story: story, Outcome: StateDrafted}
	log.Debug("story drafted", zap.String("state", res.Outcome.String()), zap.Int("story_chars", len(story)))

	for round := 1; round <= plan.rounds; round++ {
		res.Rounds = round
		res.Outcome = StateJudging

		raw, err := a.complete(ctx, llm.PurposeJudge, a.cfg.Judge, BuildJudgePrompt(req, res.Story))
		if err != nil {
			return Result{}, fmt.Errorf("judge call: %w", err)
		}

		verdict, err := ParseVerdict(raw)
		if err != nil {
			res.Outcome = StateParseFailed
			log.Warn("judge output not parseable, applying fallback revision",
				zap.Int("round", round), zap.Error(err))

			story, err := a.story(ctx, llm.PurposeFallback, a.cfg.Fallback, plan.fallback(req, res.Story))
			if err != nil && !keepStory(log, round, err) {
				return Result{}, fmt.Errorf("fallback revision: %w", err)
			}
			if err == nil {
				res.Story = story
			}
			res.Outcome = StateRevising
			continue
		}

		res.History = append(res.History, verdict)
		if bad := verdict.OutOfRange(); len(bad) > 0 {
			log.Warn("judge scores outside 1-5", zap.Int("round", round), zap.Any("criteria", bad))
		}
		if a.passes(log, round, verdict) {
			res.Outcome = StatePassed
			a.finish(log, plan.name, res)
			return res, nil
		}

		res.Outcome = StateRevising
		log.Debug("revising from judge feedback",
			zap.Int("round", round),
			zap.Int("issues", len(verdict.Issues)),
			zap.Int("instructions", len(verdict.RevisionInstructions)))
		story, err := a.story(ctx, llm.PurposeRevise, a.cfg.Revise, BuildRevisionPrompt(req, res.Story, verdict))
		if err != nil && !keepStory(log, round, err) {
			return Result{}, fmt.Errorf("revision call: %w", err)
		}
		if err == nil {
			res.Story = story
		}
	}

	res.Outcome = StateExhausted
	a.finish(log, plan.name, res)
	return res, nil
}

// keepStory reports whether err is an empty rewrite, after which the loop
// carries on with the story it already has.
func keepStory(log *zap.Logger, round int, err error) bool {
	if !errors.Is(err, ErrEmptyStory) && !errors.Is(err, llm.ErrEmptyResponse) {
		return false
	}
	log.Warn("rewrite came back empty, keeping previous story", zap.Int("round", round), zap.Error(err))
	return true
}

// passes trusts the judge's flag unless StrictPass is set, in which case the
// locally computed rubric must agree.
func (a *Agent) passes(log *zap.Logger, round int, v Verdict) bool {
	policy := v.PolicyPass()
	if v.Pass != policy {
		log.Warn("judge pass flag disagrees with rubric",
			zap.Int("round", round),
			zap.Bool("judge_pass", v.Pass),
			zap.Bool("rubric_pass", policy),
			zap.String("scores", ScoreSummary(v)))
	}
	if a.cfg.StrictPass {
		return v.Pass && policy
	}
	return v.Pass
}

func (a *Agent) finish(log *zap.Logger, loop string, res Result) {
	log.Info("story loop finished",
		zap.String("state", res.Outcome.String()),
		zap.Int("rounds", res.Rounds),
		zap.Int("judged", len(res.History)))
	if a.observer != nil {
		a.observer.ObserveLoop(loop, res.Outcome.String(), res.Rounds, len(res.History))
	}
}
