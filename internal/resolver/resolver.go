package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"metalwatch/internal/query"
	"metalwatch/internal/storage"
)

// Day groups the records stored for one calendar date.
type Day struct {
	Date    time.Time
	Records []storage.PriceRecord
}

// Coverage is the store's known date span, reported when a lookup misses.
type Coverage struct {
	Oldest time.Time
	Newest time.Time
	Known  bool
}

// Resolution is the outcome of a lookup. Days is ascending by date and is
// empty when nothing was found; Coverage is filled in that case.
type Resolution struct {
	Requested query.DateQuery
	Days      []Day
	// Fallback is set when a single date was answered from another day in
	// the widening window.
	Fallback bool
	Coverage Coverage
}

// Empty reports whether no rows were found.
func (r Resolution) Empty() bool { return len(r.Days) == 0 }

// Last returns the most recent resolved day.
func (r Resolution) Last() Day {
	if len(r.Days) == 0 {
		return Day{}
	}
	return r.Days[len(r.Days)-1]
}

// First returns the earliest resolved day.
func (r Resolution) First() Day {
	if len(r.Days) == 0 {
		return Day{}
	}
	return r.Days[0]
}

// Options tune resolver behaviour.
type Options struct {
	// WindowDays widens a missed single-date lookup to [d-n, d+n].
	WindowDays int
	// LookbackDays bounds the search for the day before another day.
	LookbackDays int
}

// Resolver fetches exact or fallback data for a date query.
type Resolver struct {
	store  storage.PriceReader
	opts   Options
	logger zerolog.Logger
}

// New constructs a Resolver over a price reader.
func New(store storage.PriceReader, opts Options, logger zerolog.Logger) *Resolver {
	if opts.WindowDays < 0 {
		opts.WindowDays = 0
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	return &Resolver{store: store, opts: opts, logger: logger.With().Str("component", "resolver").Logger()}
}

// Resolve looks up rows for q restricted to metals (empty = all metals).
// Store failures are returned as errors; a miss is an empty Resolution.
func (r *Resolver) Resolve(ctx context.Context, q query.DateQuery, metals query.Selection) (Resolution, error) {
	var (
		res Resolution
		err error
	)
	switch dq := q.(type) {
	case query.SingleDate:
		res, err = r.resolveSingle(ctx, dq.Date, metals)
	case query.DateRange:
		res, err = r.resolveRange(ctx, dq, metals)
	case query.NoDate, nil:
		res, err = r.resolveLatest(ctx, metals)
	default:
		return Resolution{}, fmt.Errorf("resolve: unsupported date query %T", q)
	}
	if err != nil {
		return Resolution{}, err
	}
	res.Requested = q
	if res.Requested == nil {
		res.Requested = query.NoDate{}
	}

	if res.Empty() {
		cov, covErr := r.Coverage(ctx)
		if covErr != nil {
			return Resolution{}, covErr
		}
		res.Coverage = cov
		r.logger.Debug().Str("query", res.Requested.String()).Msg("no rows in requested window")
	}
	return res, nil
}

// Coverage returns the store's oldest and newest dates.
func (r *Resolver) Coverage(ctx context.Context) (Coverage, error) {
	oldest, newest, ok, err := r.store.DateBounds(ctx)
	if err != nil {
		return Coverage{}, fmt.Errorf("date bounds: %w", err)
	}
	return Coverage{Oldest: oldest, Newest: newest, Known: ok}, nil
}

// Latest resolves the most recent day with any data.
func (r *Resolver) Latest(ctx context.Context, metals query.Selection) (Resolution, error) {
	return r.Resolve(ctx, query.NoDate{}, metals)
}

// Previous returns the most recent day strictly before day, looking back at
// most LookbackDays. ok is false when no such day exists.
func (r *Resolver) Previous(ctx context.Context, day time.Time, metals query.Selection) (Day, bool, error) {
	from := day.AddDate(0, 0, -r.opts.LookbackDays)
	to := day.AddDate(0, 0, -1)
	recs, err := r.store.PricesBetween(ctx, from, to, metals.Codes())
	if err != nil {
		return Day{}, false, fmt.Errorf("prices between: %w", err)
	}
	days := GroupByDate(recs)
	if len(days) == 0 {
		return Day{}, false, nil
	}
	return days[len(days)-1], true, nil
}

func (r *Resolver) resolveSingle(ctx context.Context, day time.Time, metals query.Selection) (Resolution, error) {
	recs, err := r.store.PricesOn(ctx, day, metals.Codes())
	if err != nil {
		return Resolution{}, fmt.Errorf("prices on: %w", err)
	}
	if len(recs) > 0 {
		return Resolution{Days: []Day{{Date: storage.Day(day), Records: recs}}}, nil
	}
	if r.opts.WindowDays == 0 {
		return Resolution{}, nil
	}

	from := day.AddDate(0, 0, -r.opts.WindowDays)
	to := day.AddDate(0, 0, r.opts.WindowDays)
	recs, err = r.store.PricesBetween(ctx, from, to, metals.Codes())
	if err != nil {
		return Resolution{}, fmt.Errorf("prices between: %w", err)
	}
	days := GroupByDate(recs)
	if len(days) == 0 {
		return Resolution{}, nil
	}

	// The most recent day in the window wins, even when an earlier day is
	// closer to the target.
	picked := days[len(days)-1]
	r.logger.Debug().
		Time("target", day).
		Time("picked", picked.Date).
		Msg("single date answered from window")
	return Resolution{Days: []Day{picked}, Fallback: true}, nil
}

func (r *Resolver) resolveRange(ctx context.Context, q query.DateRange, metals query.Selection) (Resolution, error) {
	r.logger.Debug().Str("range", q.String()).Int("days", q.Days()).Msg("loading range")
	recs, err := r.store.PricesBetween(ctx, q.From, q.To, metals.Codes())
	if err != nil {
		return Resolution{}, fmt.Errorf("prices between: %w", err)
	}
	return Resolution{Days: GroupByDate(recs)}, nil
}

func (r *Resolver) resolveLatest(ctx context.Context, metals query.Selection) (Resolution, error) {
	latest, ok, err := r.store.LatestDate(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("latest date: %w", err)
	}
	if !ok {
		return Resolution{}, nil
	}

	recs, err := r.store.PricesOn(ctx, latest, metals.Codes())
	if err != nil {
		return Resolution{}, fmt.Errorf("prices on: %w", err)
	}
	if len(recs) > 0 {
		return Resolution{Days: []Day{{Date: latest, Records: recs}}}, nil
	}
	if metals.All() {
		return Resolution{}, nil
	}

	// The newest day overall may not carry the selected metals; fall back to
	// their own most recent day.
	day, found, err := r.Previous(ctx, latest.AddDate(0, 0, 1), metals)
	if err != nil || !found {
		return Resolution{}, err
	}
	return Resolution{Days: []Day{day}}, nil
}

// GroupByDate buckets records by date, ascending. Input order within a day
// is preserved.
func GroupByDate(recs []storage.PriceRecord) []Day {
	days := make([]Day, 0)
	index := make(map[time.Time]int)
	for _, rec := range recs {
		key := storage.Day(rec.Date)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, Day{Date: key})
		}
		days[i].Records = append(days[i].Records, rec)
	}
	sortDays(days)
	return days
}
