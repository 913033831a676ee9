package assistant

import (
	"context"

	"golang.org/x/sync/errgroup"

	"metalwatch/internal/insight"
	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
)

// Build reads the data an intent needs and computes its context. The error
// is non-nil only for store failures.
func (a *Assistant) Build(ctx context.Context, q query.Question) (insight.Context, error) {
	switch q.Intent {
	case query.IntentHelp:
		return insight.BuildHelp(), nil
	case query.IntentDateRange:
		cov, err := a.resolver.Coverage(ctx)
		if err != nil {
			return insight.Context{}, err
		}
		return insight.BuildDateRange(cov), nil
	case query.IntentCarats:
		return a.buildCarats(ctx)
	case query.IntentCompare:
		return a.buildCompare(ctx, q)
	case query.IntentTrend, query.IntentAverage:
		return a.buildSeries(ctx, q)
	case query.IntentRank:
		res, err := a.resolver.Resolve(ctx, q.Date, q.Metals)
		if err != nil {
			return insight.Context{}, err
		}
		if res.Empty() {
			return insight.BuildNoData(q.Intent, res.Requested, res.Coverage), nil
		}
		return insight.BuildRank(res.Last(), q.Metals), nil
	default:
		res, err := a.resolver.Resolve(ctx, q.Date, q.Metals)
		if err != nil {
			return insight.Context{}, err
		}
		if res.Empty() {
			return insight.BuildNoData(query.IntentPrice, res.Requested, res.Coverage), nil
		}
		return insight.BuildPrice(res, q.Metals), nil
	}
}

func (a *Assistant) buildCarats(ctx context.Context) (insight.Context, error) {
	res, err := a.resolver.Latest(ctx, query.Selection{query.Gold})
	if err != nil {
		return insight.Context{}, err
	}
	if res.Empty() {
		return insight.BuildCarats(nil), nil
	}
	day := res.Last()
	return insight.BuildCarats(&day), nil
}

// buildCompare pairs a base day with a later target day:
// no date compares the latest day with the one before it, a single date is
// compared with the latest day, and a range compares its first and last day.
func (a *Assistant) buildCompare(ctx context.Context, q query.Question) (insight.Context, error) {
	switch dq := q.Date.(type) {
	case query.DateRange:
		res, err := a.resolver.Resolve(ctx, dq, q.Metals)
		if err != nil {
			return insight.Context{}, err
		}
		if len(res.Days) < 2 {
			return compareUnavailable(q, res)
		}
		return insight.BuildCompare(res.First(), res.Last(), q.Metals), nil

	case query.SingleDate:
		var requested, latest resolver.Resolution
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			requested, err = a.resolver.Resolve(gctx, dq, q.Metals)
			return err
		})
		g.Go(func() error {
			var err error
			latest, err = a.resolver.Latest(gctx, q.Metals)
			return err
		})
		if err := g.Wait(); err != nil {
			return insight.Context{}, err
		}
		if requested.Empty() {
			return insight.BuildNoData(q.Intent, requested.Requested, requested.Coverage), nil
		}

		base, target := requested.Last(), latest.Last()
		if latest.Empty() || !base.Date.Before(target.Date) {
			// the requested day is the newest; compare it with its predecessor
			prev, ok, err := a.resolver.Previous(ctx, base.Date, q.Metals)
			if err != nil {
				return insight.Context{}, err
			}
			if !ok {
				return compareUnavailable(q, requested)
			}
			base, target = prev, requested.Last()
		}
		return insight.BuildCompare(base, target, q.Metals), nil

	default:
		latest, err := a.resolver.Latest(ctx, q.Metals)
		if err != nil {
			return insight.Context{}, err
		}
		if latest.Empty() {
			return insight.BuildNoData(q.Intent, latest.Requested, latest.Coverage), nil
		}
		prev, ok, err := a.resolver.Previous(ctx, latest.Last().Date, q.Metals)
		if err != nil {
			return insight.Context{}, err
		}
		if !ok {
			return compareUnavailable(q, latest)
		}
		return insight.BuildCompare(prev, latest.Last(), q.Metals), nil
	}
}

// compareUnavailable reports that only one day of data is available.
func compareUnavailable(q query.Question, res resolver.Resolution) (insight.Context, error) {
	if res.Empty() {
		return insight.BuildNoData(q.Intent, res.Requested, res.Coverage), nil
	}
	c := insight.BuildPrice(resolver.Resolution{Requested: query.NoDate{}, Days: []resolver.Day{res.Last()}}, q.Metals)
	c.Intent = query.IntentCompare
	c.Evidence = append(c.Evidence, "No earlier date is available to compare with.")
	c.Suggested = c.Suggested + " There is no earlier date to compare it with."
	return c, nil
}

// buildSeries serves trend and average: an explicit range is used as is,
// otherwise the trailing window ends at the requested or latest day.
func (a *Assistant) buildSeries(ctx context.Context, q query.Question) (insight.Context, error) {
	metal := q.Metals.Primary()
	only := query.Selection{metal}

	window, isRange := q.Date.(query.DateRange)
	if !isRange {
		anchor, err := a.resolver.Resolve(ctx, q.Date, only)
		if err != nil {
			return insight.Context{}, err
		}
		if anchor.Empty() {
			return insight.BuildNoData(q.Intent, anchor.Requested, anchor.Coverage), nil
		}
		window = query.Trailing(anchor.Last().Date, a.opts.TrailingDays)
	}

	res, err := a.resolver.Resolve(ctx, window, only)
	if err != nil {
		return insight.Context{}, err
	}
	if res.Empty() {
		return insight.BuildNoData(q.Intent, res.Requested, res.Coverage), nil
	}
	if q.Intent == query.IntentAverage {
		return insight.BuildAverage(res.Days, metal), nil
	}
	return insight.BuildTrend(res.Days, metal), nil
}
