package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/cartridge/gather/internal/config"
	"github.com/cartridge/gather/internal/env"
	"github.com/cartridge/gather/internal/kinematic"
	"github.com/cartridge/gather/internal/observability"
	"github.com/cartridge/gather/internal/simulator"
)

const shutdownTimeout = 30 * time.Second

func newServeSimCmd(configFile *string) *cobra.Command {
	cfg := config.DefaultSimServer()

	cmd := &cobra.Command{
		Use:   "serve-sim",
		Short: "Serve the built-in arm simulator over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd.Flags(), *configFile, cfg); err != nil {
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

			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveSim(ctx, lis, cfg.Seed, logger)
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Port, "port", cfg.Port, "gRPC server port")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "object placement seed (0 picks one from the clock)")
	f.StringVar(&cfg.LogLevel, "log_level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFile, "log_file", cfg.LogFile, "also write JSON logs to this rotating file")
	return cmd
}

// kinematicFactory builds a fresh arm for every distinct set of reset options.
func kinematicFactory(seed int64, logger zerolog.Logger) simulator.Factory {
	return func(opts simulator.ResetOptions) (env.Environment, error) {
		if opts.GUI {
			logger.Warn().Msg("Built-in simulator has no viewer, ignoring gui")
		}
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return kinematic.New(kinematic.Options{
			MaxSteps: opts.MaxSteps,
			Width:    opts.Width,
			Height:   opts.Height,
			Seed:     seed,
		})
	}
}

// serveSim serves on lis until ctx is cancelled.
func serveSim(ctx context.Context, lis net.Listener, seed int64, logger zerolog.Logger) error {
	sim := simulator.NewServer(kinematicFactory(seed, logger), logger)
	defer func() {
		if err := sim.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close simulator")
		}
	}()

	server := grpc.NewServer(
		grpc.UnaryInterceptor(simulator.LoggingInterceptor(logger)),
	)
	sim.Register(server)
	reflection.Register(server)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", lis.Addr().String()).Msg("Simulator listening")
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down gracefully")
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		server.Stop()
	case <-stopped:
		logger.Info().Msg("Simulator stopped gracefully")
	}
	return nil
}
