package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per scheduled slot.
type TickFunc func(ctx context.Context, slot time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// AlignToStart places slots at local midnight + Offset + k*Interval
	// instead of counting from process start.
	AlignToStart bool
	Offset       time.Duration
	Location     *time.Location
	StartupDelay time.Duration
	// Now overrides the clock used to compute slots.
	Now func() time.Time
}

// Scheduler runs a job on fixed slots, e.g. every day at 09:00 IST.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick at each slot until ctx is cancelled. Tick
// errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.NextSlot(s.opts.Now())
	for {
		delay := next.Sub(s.opts.Now())
		if delay < 0 {
			// a slow tick overran one or more slots
			next = s.NextSlot(s.opts.Now())
			delay = next.Sub(s.opts.Now())
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_slot", next).Msg("waiting for next slot")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.logger.Info().Time("slot", next).Msg("executing scheduled tick")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("slot", next).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

// NextSlot returns the first slot strictly after now.
func (s *Scheduler) NextSlot(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}

	y, m, d := now.In(s.opts.Location).Date()
	anchor := time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location).Add(s.opts.Offset)
	steps := now.Sub(anchor) / s.opts.Interval
	next := anchor.Add(steps * s.opts.Interval)
	for !next.After(now) {
		next = next.Add(s.opts.Interval)
	}
	return next.UTC()
}
