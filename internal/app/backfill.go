package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"metalwatch/internal/service"
	"metalwatch/internal/storage"
)

// Backfill collects the feed for every day in [From, To].
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	feed := a.newFeed()
	if feed == nil {
		return errors.New("feed.url not configured; nothing to backfill from")
	}

	start, end := storage.Day(opts.From), storage.Day(opts.To)
	if start.After(end) {
		return errors.New("backfill range is empty; check --from/--to")
	}

	var writer storage.PriceWriter
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be written")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		writer = store
	}

	svc := service.New(a.Config, nil, feed, writer, nil, nil, nil, a.Logger)

	processed, failed, records := 0, 0, 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if opts.DryRun {
			recs, err := feed.FetchPrices(ctx, day)
			if err != nil {
				failed++
				a.Logger.Error().Err(err).Time("day", day).Msg("backfill fetch failed")
				continue
			}
			records += len(recs)
			processed++
			continue
		}

		n, err := svc.Collect(ctx, day)
		records += n
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Time("day", day).Msg("backfill day failed")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Int("records", records).Msg("backfill complete")
	if failed > 0 {
		return fmt.Errorf("%d day(s) failed to backfill; check the logs", failed)
	}
	return nil
}

// Import upserts every record of a CSV file into the configured store.
func (a *App) Import(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	recs, err := storage.LoadCSV(f)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, rec := range recs {
		if err := store.UpsertPrice(ctx, rec); err != nil {
			return fmt.Errorf("upsert %s %s %s: %w", rec.Date.Format("2006-01-02"), rec.Metal, rec.Carat, err)
		}
	}
	a.Logger.Info().Str("path", path).Int("records", len(recs)).Msg("import complete")
	return nil
}
