package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimmyptl-jer/Docker/internal/config"
	"github.com/jimmyptl-jer/Docker/internal/logging"
	"github.com/jimmyptl-jer/Docker/internal/port"
	"github.com/jimmyptl-jer/Docker/internal/responder"
	"github.com/jimmyptl-jer/Docker/internal/telemetry"
	"github.com/jimmyptl-jer/Docker/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the responder",
	Long: "Bind $PORT on all interfaces and answer every request with the greeting.\n" +
		"Exits non-zero if the port cannot be bound. SIGINT/SIGTERM close the listener and exit 0.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

var strictPort bool

func init() {
	addServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&strictPort, "strict-port", false, "Fail on an invalid PORT instead of falling back to 3000")
}

// configOptions builds resolution options from the parsed flags. An env
// file named on the command line must exist; the default one is optional.
func configOptions(cmd *cobra.Command) config.Options {
	return config.Options{
		ConfigFile:      configFile,
		EnvFile:         envFile,
		EnvFileRequired: cmd.Flags().Changed("env-file"),
		StrictPort:      strictPort,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, configOptions(cmd), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// serve runs the responder until ctx is cancelled or serving fails.
// The startup line goes to stdout; logs go to stderr.
func serve(ctx context.Context, opts config.Options, stdout, stderr io.Writer) error {
	cfg, err := config.Resolve(opts)
	if err != nil {
		var perr *port.Error
		if errors.As(err, &perr) {
			// An unusable PORT is a bind failure like any other.
			return &responder.BindError{
				Addr:   net.JoinHostPort("", perr.Value),
				Reason: responder.BindInvalid,
				Err:    err,
			}
		}
		return err
	}

	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Debug("configuration resolved", "addr", cfg.Addr(), "file", cfg.File)

	if cfg.PortErr != nil {
		logger.Warn("ignoring PORT, using default", "error", cfg.PortErr, "port", cfg.Port)
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	tp, err := telemetry.Initialize(ctx, telemetry.FromEnv(getenv))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	h := responder.NewHandler(cfg.Greeting, logger)

	srv, err := responder.Start(ctx, responder.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		Handler:           telemetry.Wrap(h, tp, "hello"),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		Announce:          stdout,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	if cfg.File != "" && cfg.Watch && !cfg.GreetingFromEnv {
		w := watch.New(cfg.File, func(next *config.Config) {
			if next.Greeting == h.Greeting() {
				return
			}
			h.SetGreeting(next.Greeting)
			logger.Info("greeting updated", "greeting", next.Greeting)
		}, logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("config watcher stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "reason", context.Cause(ctx))
		srv.Close()
		return nil
	case <-srv.Done():
		return srv.Wait()
	}
}
