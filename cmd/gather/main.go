package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/cartridge/gather/internal/actor"
	"github.com/cartridge/gather/internal/config"
	"github.com/cartridge/gather/internal/env"
	"github.com/cartridge/gather/internal/episodelog"
	"github.com/cartridge/gather/internal/events"
	httpServer "github.com/cartridge/gather/internal/http"
	"github.com/cartridge/gather/internal/kinematic"
	"github.com/cartridge/gather/internal/metrics"
	"github.com/cartridge/gather/internal/observability"
	"github.com/cartridge/gather/internal/simulator"
	"github.com/cartridge/gather/internal/storage"
)

const envPrefix = "GATHER"

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var configFile string

	cmd := &cobra.Command{
		Use:   "gather",
		Short: "Collect grasping rollouts from a robot arm simulator",
		Long: `gather runs a random or greedy agent against a grasping simulator and
logs every transition as two camera images plus a JSON-lines record.

Output lands in <log_root>/<run>/e<episode>/{0,1}_<step>.<ext> and
<log_root>/<run>/e<episode>/log.json.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd.Flags(), configFile, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, closer, err := observability.NewLogger(observability.LoggerConfig{
				Level:   cfg.LogLevel,
				File:    cfg.LogFile,
				Console: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return collect(ctx, cfg, logger)
		},
	}

	f := cmd.Flags()
	// Rollout settings
	f.StringVar(&cfg.Agent, "agent", cfg.Agent, "agent to run (random, greedy)")
	f.BoolVar(&cfg.GUI, "gui", cfg.GUI, "ask the simulator to open a viewer")
	f.IntVar(&cfg.MaxSteps, "max_steps", cfg.MaxSteps, "env max steps")
	f.IntVar(&cfg.NumEpisodes, "num_episodes", cfg.NumEpisodes, "number of rollouts to do")
	f.StringVar(&cfg.Run, "run", cfg.Run, "run name; images and logs go under <log_root>/<run>")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 picks one from the clock)")

	// Output layout
	f.StringVar(&cfg.LogRoot, "log_root", cfg.LogRoot, "root directory for run output")
	f.StringVar(&cfg.ImageFormat, "image_format", cfg.ImageFormat, "camera image format (png, jpg)")
	f.IntVar(&cfg.ImageWidth, "image_width", cfg.ImageWidth, "camera image width")
	f.IntVar(&cfg.ImageHeight, "image_height", cfg.ImageHeight, "camera image height")

	// Simulator
	f.StringVar(&cfg.SimAddr, "sim_addr", cfg.SimAddr, "gRPC simulator address; empty uses the built-in arm")
	f.Float64Var(&cfg.StepRate, "step_rate", cfg.StepRate, "max environment steps per second (0 for unlimited)")

	// Optional sinks
	f.StringVar(&cfg.StatusAddr, "status_addr", cfg.StatusAddr, "HTTP status server address (empty disables)")
	f.StringVar(&cfg.NATSURL, "nats_url", cfg.NATSURL, "NATS URL for episode events (empty disables)")
	f.StringVar(&cfg.NATSSubject, "nats_subject", cfg.NATSSubject, "NATS subject for episode events")
	f.StringVar(&cfg.DatabaseURL, "database_url", cfg.DatabaseURL, "Postgres DSN for episode summaries (empty keeps them in memory)")

	// Logging
	f.StringVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFile, "log_file", cfg.LogFile, "also write JSON logs to this rotating file")

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")

	cmd.AddCommand(newServeSimCmd(&configFile))
	return cmd
}

// loadConfig layers .env, GATHER_* environment variables and the config file
// under explicitly set flags, then decodes the result into cfg.
func loadConfig(flags *pflag.FlagSet, configFile string, cfg any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

func collect(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info().
		Str("run", cfg.Run).
		Str("agent", cfg.Agent).
		Int("max_steps", cfg.MaxSteps).
		Int("num_episodes", cfg.NumEpisodes).
		Int64("seed", seed).
		Msg("Starting collector")

	environment, err := buildEnvironment(cfg, seed, logger)
	if err != nil {
		return err
	}
	defer func() {
		if c, ok := environment.(env.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close environment")
			}
		}
	}()

	episodes, err := episodelog.New(cfg.LogRoot, cfg.Run, episodelog.Options{
		Format: cfg.ImageFormat,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := buildPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	collector := metrics.NewCollector(logger)
	agent, err := actor.New(cfg.Agent, actor.Options{
		Recorder: actor.NewMeteredRecorder(episodes, cfg.Run, collector),
		Rand:     rand.New(rand.NewSource(seed)),
		Logger:   logger,
		OnTransition: func(t actor.Transition) {
			collector.GreedyTransition(t.Episode, t.Step, t.Axis, t.Accepted, t.Distance, t.BestDistance)
		},
	})
	if err != nil {
		return err
	}

	runner := actor.NewRunner(actor.RunnerConfig{
		Run:         cfg.Run,
		NumEpisodes: cfg.NumEpisodes,
		Env:         environment,
		Agent:       agent,
		Store:       store,
		Publisher:   publisher,
		Metrics:     collector,
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	statusCtx, stopStatus := context.WithCancel(gctx)
	defer stopStatus()

	if cfg.StatusAddr != "" {
		status := httpServer.NewServer(store, collector, logger)
		g.Go(func() error {
			return status.ListenAndServe(statusCtx, cfg.StatusAddr)
		})
	}
	g.Go(func() error {
		defer stopStatus()
		return runner.Run(gctx)
	})
	return g.Wait()
}

func buildEnvironment(cfg *config.Config, seed int64, logger zerolog.Logger) (env.Environment, error) {
	var environment env.Environment
	if cfg.SimAddr != "" {
		client, err := simulator.Dial(cfg.SimAddr, simulator.ResetOptions{
			MaxSteps: cfg.MaxSteps,
			GUI:      cfg.GUI,
			Width:    cfg.ImageWidth,
			Height:   cfg.ImageHeight,
		}, rand.New(rand.NewSource(seed+1)))
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", cfg.SimAddr).Msg("Using remote simulator")
		environment = client
	} else {
		if cfg.GUI {
			logger.Warn().Msg("Built-in simulator has no viewer, ignoring --gui")
		}
		sim, err := kinematic.New(kinematic.Options{
			MaxSteps: cfg.MaxSteps,
			Width:    cfg.ImageWidth,
			Height:   cfg.ImageHeight,
			Seed:     seed,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create simulator: %w", err)
		}
		environment = sim
	}

	if cfg.StepRate > 0 {
		environment = env.NewPaced(environment, cfg.StepRate)
	}
	return environment, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return storage.NewMemoryStore(), func() {}, nil
	}
	store, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func buildPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, func(), error) {
	if cfg.NATSURL == "" {
		return events.NoopPublisher{}, func() {}, nil
	}
	publisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	return publisher, publisher.Close, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
