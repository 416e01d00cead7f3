// Package console runs the interactive bedtime session over line-oriented I/O.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bedtime_story_generator/generator"
	"bedtime_story_generator/render"
)

const (
	requestPrompt  = "What kind of story do you want to hear? "
	feedbackPrompt = "\nAny changes? (e.g., 'shorter', 'funnier', 'more about Bob')\nPress Enter to accept the story and finish: "
	farewell       = "Goodnight, Sweet Dreams!"
)

// Options tunes a Driver. Zero values pick the defaults.
type Options struct {
	SessionID string
	// MaxEdits bounds the feedback rounds offered after the first story.
	MaxEdits  int
	ShowJudge bool
	Renderer  render.Renderer
	Logger    *zap.Logger
}

// DefaultMaxEdits is how many change requests a user gets.
const DefaultMaxEdits = 3

// Driver talks to the user and runs the story loops in between.
type Driver struct {
	in        *bufio.Reader
	out       io.Writer
	agent     *generator.Agent
	cfg       generator.SessionConfig
	id        string
	maxEdits  int
	showJudge bool
	renderer  render.Renderer
	logger    *zap.Logger
}

func New(in io.Reader, out io.Writer, agent *generator.Agent, cfg generator.SessionConfig, opts Options) *Driver {
	d := &Driver{
		in:        bufio.NewReader(in),
		out:       out,
		agent:     agent,
		cfg:       cfg,
		id:        opts.SessionID,
		maxEdits:  opts.MaxEdits,
		showJudge: opts.ShowJudge,
		renderer:  opts.Renderer,
		logger:    opts.Logger,
	}
	if d.id == "" {
		d.id = uuid.NewString()
	}
	if d.maxEdits <= 0 {
		d.maxEdits = DefaultMaxEdits
	}
	if d.renderer == nil {
		d.renderer = render.Plain{}
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Run asks for a request, tells the story and then takes up to MaxEdits
// change requests. An empty answer accepts the story.
func (d *Driver) Run(ctx context.Context) error {
	fmt.Fprint(d.out, requestPrompt)
	line, err := d.readLine()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	session := generator.NewSession(d.id, generator.StoryRequest(line), d.agent, d.cfg)
	d.logger.Info("session started", zap.String("request", string(session.Request)))

	res, err := session.Propose(ctx)
	if err != nil {
		return fmt.Errorf("generate story: %w", err)
	}
	d.section("-", 100, "STORY", res)

	for edit := 1; edit <= d.maxEdits; edit++ {
		fmt.Fprint(d.out, feedbackPrompt)
		feedback, err := d.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if feedback == "" {
			fmt.Fprintln(d.out, "\nStory accepted.")
			break
		}

		res, err = session.Revise(ctx, feedback)
		if err != nil {
			return fmt.Errorf("apply feedback: %w", err)
		}
		d.logger.Info("feedback applied", zap.Int("edit", edit), zap.String("state", res.Outcome.String()))
		d.section("=", 60, fmt.Sprintf("UPDATED STORY (edit %d)", edit), res)
	}

	fmt.Fprintln(d.out, "\n"+farewell)
	return nil
}

// Tell generates one story for req and prints it without asking for feedback.
func (d *Driver) Tell(ctx context.Context, req generator.StoryRequest) (generator.Result, error) {
	session := generator.NewSession(d.id, req, d.agent, d.cfg)
	res, err := session.Propose(ctx)
	if err != nil {
		return generator.Result{}, fmt.Errorf("generate story: %w", err)
	}
	d.section("-", 100, "STORY", res)
	return res, nil
}

func (d *Driver) section(rule string, width int, title string, res generator.Result) {
	bar := strings.Repeat(rule, width)
	fmt.Fprintf(d.out, "\n%s\n%s\n%s\n\n", bar, title, bar)
	fmt.Fprintln(d.out, d.render(res.Story))

	if d.showJudge {
		fmt.Fprintf(d.out, "\n%s\nJUDGE SUMMARY (debug)\n%s\n", bar, bar)
		fmt.Fprintln(d.out, generator.FormatJudgeDebug(res.History))
	}
}

func (d *Driver) render(story string) string {
	out, err := d.renderer.Render(story)
	if err != nil {
		d.logger.Debug("render failed, printing raw story", zap.Error(err))
		return story
	}
	return out
}

// readLine returns the next trimmed line. io.EOF is returned only when no
// input at all was left.
func (d *Driver) readLine() (string, error) {
	line, err := d.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return strings.TrimSpace(line), err
	}
	return strings.TrimSpace(line), nil
}
