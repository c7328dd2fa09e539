package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rbright/livescribe/internal/capability"
	"github.com/rbright/livescribe/internal/cli"
	"github.com/rbright/livescribe/internal/config"
	"github.com/rbright/livescribe/internal/ipc"
	"github.com/rbright/livescribe/internal/metrics"
	"github.com/rbright/livescribe/internal/output"
	"github.com/rbright/livescribe/internal/session"
	"github.com/rbright/livescribe/internal/transcript"
	"github.com/rbright/livescribe/internal/ui"
)

const shutdownTimeout = 2 * time.Second

// runOwner acquires the session socket and drives one session until ctx ends or the UI quits.
func (r Runner) runOwner(ctx context.Context, command cli.Command, cfg config.Config, logger zerolog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.DefaultAcquireOptions)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	sessionID := uuid.NewString()
	logger = logger.With().Str("session_id", sessionID).Logger()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		server := metrics.NewServer(cfg.Metrics.Listen, m, logger)
		if err := server.Start(); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	registry := capability.NewRegistry(logger, Providers(cfg, logger)...)
	handle, backend, err := registry.Create(capabilityConfig(cfg))
	switch {
	case errors.Is(err, capability.ErrUnsupported):
		logger.Warn().Err(err).Msg("speech recognition unsupported")
		handle, backend = nil, ""
	case err != nil:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	controller := session.NewController(session.Options{
		Handle:  handle,
		Backend: backend,
		Logger:  logger,
		Metrics: m,
	})
	export := &exporter{
		controller: controller,
		committer:  output.NewCommitter(cfg.Clipboard, logger),
		options:    transcript.Options{TrailingSpace: cfg.Transcript.TrailingSpace},
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		controller.Run(sessionCtx)
	}()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- ipc.Serve(sessionCtx, listener, export.handler(), logger)
	}()

	logger.Info().
		Str("mode", string(command)).
		Str("backend", backend).
		Bool("supported", handle != nil).
		Str("socket", socketPath).
		Msg("session owner started")

	var runErr error
	if command == cli.CommandListen {
		runErr = r.runHeadless(sessionCtx, controller)
	} else {
		views, unsubscribe := controller.Subscribe()
		model := ui.NewModel(controller, export.Copy, views, controller.View())
		runErr = r.runUI(sessionCtx, model)
		unsubscribe()
	}

	cancel()
	<-runDone
	serveErr := <-serveDone
	logger.Info().Msg("session owner stopped")

	if runErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}
	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serveErr)
		return 1
	}
	return 0
}

// runHeadless starts listening and prints finalized lines until ctx ends.
func (r Runner) runHeadless(ctx context.Context, controller *session.Controller) error {
	if !controller.Supported() {
		return capability.ErrUnsupported
	}
	if _, err := controller.Start(ctx); err != nil {
		return err
	}

	views, unsubscribe := controller.Subscribe()
	defer unsubscribe()

	printer := ui.NewPrinter(r.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case view := <-views:
			if err := printer.Print(view); err != nil {
				return err
			}
		}
	}
}
