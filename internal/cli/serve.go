package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the compiler over HTTP",
		Long: `Start the HTTP API.

POST /api/v1/compile compiles a structured intent, POST /api/v1/ask
answers a question when an OpenAI key is configured, and /metrics
exposes Prometheus metrics.

Example:
  semlayer serve --addr :8080 --defs ./definitions --warehouse ./customers.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.Logger
	cfg := opts.Config

	m, _, errs := opts.loadModel("")
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("definition error", "error", err)
		}
		return WrapExitError(ExitCommandError, "failed to load semantic model", errs[0])
	}
	c, err := opts.buildService(cmd.Context(), m, true)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer c.close()

	if c.service.Extractor == nil {
		logger.Info("no OpenAI key configured, /api/v1/ask is disabled")
	}

	srv := server.New(c.service, server.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
	}, logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d metrics on %s. Press Ctrl-C to stop.\n", m.Metrics().Len(), addr)

	if err := srv.Run(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
