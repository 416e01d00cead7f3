// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"bedtime_story_generator/llm"
)

// Scripted answers each call from a per-purpose queue and records every request.
// Once a queue is drained its last entry repeats; a purpose with no script answers
// "<purpose> #<n>", which is never valid judge JSON.
type Scripted struct {
	mu        sync.Mutex
	outputs   map[llm.Purpose][]string
	errs      map[llm.Purpose]error
	served    map[llm.Purpose]int
	calls     []llm.Request
	ModelName string
}

func New() *Scripted {
	return &Scripted{
		outputs:   make(map[llm.Purpose][]string),
		errs:      make(map[llm.Purpose]error),
		served:    make(map[llm.Purpose]int),
		ModelName: "scripted",
	}
}

// On appends outputs for purpose.
func (s *Scripted) On(p llm.Purpose, outputs ...string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[p] = append(s.outputs[p], outputs...)
	return s
}

// Fail makes every call for purpose return err.
func (s *Scripted) Fail(p llm.Purpose, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[p] = err
	return s
}

func (s *Scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	n := s.served[req.Purpose]
	s.served[req.Purpose] = n + 1

	if err := s.errs[req.Purpose]; err != nil {
		return "", err
	}
	queue := s.outputs[req.Purpose]
	switch {
	case len(queue) == 0:
		return fmt.Sprintf("%s #%d", req.Purpose, n+1), nil
	case n < len(queue):
		return queue[n], nil
	default:
		return queue[len(queue)-1], nil
	}
}

func (s *Scripted) Model() string {
	return s.ModelName
}

// Calls returns a copy of every request received, in order.
func (s *Scripted) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many calls were made for purpose.
func (s *Scripted) Count(p llm.Purpose) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served[p]
}

// Purposes returns the purpose of each call in order.
func (s *Scripted) Purposes() []llm.Purpose {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Purpose, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Purpose
	}
	return out
}
