package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"metalwatch/internal/httpapi"
	"metalwatch/internal/version"
)

const shutdownGrace = 10 * time.Second

// Serve runs the chat API until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	asst, closeAssistant, err := a.newAssistant(ctx, store)
	if err != nil {
		return err
	}
	defer closeAssistant()

	if a.Config.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:         a.Config.HTTP.Addr,
		Handler:      httpapi.NewRouter(asst, store, a.Logger),
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Str("version", version.String()).Msg("chat API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	a.Logger.Info().Msg("chat API stopped")
	return nil
}
