package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"bugsage/internal/auth"
	"bugsage/internal/service"
	httptransport "bugsage/internal/transport/http"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := buildRepository(ctx, cfg)
	if err != nil {
		log.Errorw("init repository", "error", err)
		return err
	}
	defer cleanup()

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	svc := service.New(repo, tokens)
	handler := httptransport.NewHandler(svc, log, cfg.HTTP.RequestTimeout)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("HTTP server listening", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Errorw("HTTP server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	log.Infow("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP server shutdown error", "error", err)
		return err
	}
	return nil
}
