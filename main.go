package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bedtime_story_generator/config"
	"bedtime_story_generator/console"
	"bedtime_story_generator/generator"
	"bedtime_story_generator/llm"
	"bedtime_story_generator/metrics"
	"bedtime_story_generator/render"
)

var (
	configPath  string
	verbose     bool
	showJudge   bool
	metricsAddr string

	tellLength string
	tellStyle  string
	tellRounds int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bedtime",
	Short: "Tell a judged and revised bedtime story for ages 5-10",
	Long: `bedtime writes a children's bedtime story from your request, has a second
model call judge it against a safety and quality rubric, and revises it until it
passes or the round budget runs out. Afterwards you can ask for changes.

Run without arguments for an interactive session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stderr"}
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.close()
		return app.driver.Run(cmd.Context())
	},
}

var tellCmd = &cobra.Command{
	Use:   "tell [request...]",
	Short: "Generate one story and print it without asking for changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.close()
		_, err = app.driver.Tell(cmd.Context(), generator.StoryRequest(strings.Join(args, " ")))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON or YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&showJudge, "show-judge", false, "print the last judge verdict after each story")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	tellCmd.Flags().StringVar(&tellLength, "length", "", "story length: short, medium or long")
	tellCmd.Flags().StringVar(&tellStyle, "style", "", "story style: calm, funny, adventure or moral")
	tellCmd.Flags().IntVar(&tellRounds, "rounds", -1, "judge/revise rounds (default from config)")

	rootCmd.AddCommand(tellCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	driver  *console.Driver
	metrics *http.Server
}

// newApp loads config and wires provider, middleware, agent and driver for one session.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyTellFlags(cmd, &cfg); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	log := logger.With(zap.String("session_id", sessionID))

	counter, err := llm.NewTokenCounter()
	if err != nil {
		log.Warn("token counter unavailable, estimating from length", zap.Error(err))
	}

	a := &app{}
	var recorder *metrics.PrometheusRecorder
	addr := cfg.MetricsAddr
	if metricsAddr != "" {
		addr = metricsAddr
	}
	if addr != "" {
		recorder = metrics.NewPrometheusRecorder()
		a.metrics = serveMetrics(addr, recorder, log)
	}

	opts := llm.StackOptions{Retry: cfg.RetryPolicy(), Counter: counter, Logger: log}
	agentOpts := []generator.Option{generator.WithLogger(log)}
	if recorder != nil {
		opts.Recorder = recorder
		agentOpts = append(agentOpts, generator.WithObserver(recorder))
	}

	client, err := llm.Build(cfg.LLMSettings(), opts)
	if err != nil {
		a.close()
		return nil, err
	}
	agent, err := generator.NewAgent(client, cfg.AgentConfig(), agentOpts...)
	if err != nil {
		a.close()
		return nil, err
	}
	log.Debug("session wired",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", client.Model()),
		zap.Int("rounds", cfg.Story.Rounds),
		zap.Bool("strict_pass", cfg.Story.StrictPass))

	a.driver = console.New(os.Stdin, os.Stdout, agent, cfg.SessionConfig(), console.Options{
		SessionID: sessionID,
		MaxEdits:  cfg.Story.FeedbackEdits,
		ShowJudge: showJudge,
		Renderer:  render.New(os.Stdout),
		Logger:    log,
	})
	return a, nil
}

func applyTellFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Name() != "tell" {
		return nil
	}
	if tellLength != "" {
		cfg.Story.Length = tellLength
	}
	if tellStyle != "" {
		cfg.Story.Style = tellStyle
	}
	if tellRounds >= 0 {
		cfg.Story.Rounds = tellRounds
	}
	return cfg.Validate()
}

func serveMetrics(addr string, recorder *metrics.PrometheusRecorder, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func (a *app) close() {
	if a.metrics == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.metrics.Shutdown(ctx)
}
