package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"metalwatch/internal/metrics"
	"metalwatch/internal/scheduler"
	"metalwatch/internal/service"
)

// Run executes the long-running collect-and-digest service.
func (a *App) Run(ctx context.Context) error {
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

	feed := a.newFeed()
	if feed == nil {
		a.Logger.Warn().Msg("feed.url not configured; digests use stored prices only")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("no digest channel enabled; digests are only logged")
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Digest.Interval,
		AlignToStart: a.Config.Digest.AlignToBucket,
		Offset:       a.Config.Digest.Offset,
		Location:     a.Config.ResolveLocation(),
		StartupDelay: a.Config.Digest.StartupDelay,
		Now:          a.Now,
	}, a.Logger)

	svc := service.New(a.Config, sched, feed, store, asst, notifier, metrics.Recorder{}, a.Logger)

	a.Logger.Info().Msg("starting digest service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("digest service stopped")
	return nil
}
