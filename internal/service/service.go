package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"metalwatch/internal/alerting"
	"metalwatch/internal/assistant"
	"metalwatch/internal/config"
	"metalwatch/internal/fetcher"
	"metalwatch/internal/scheduler"
	"metalwatch/internal/storage"
)

// Asker answers one digest question.
type Asker interface {
	Ask(ctx context.Context, text string) (assistant.Reply, error)
}

// RunRecorder counts digest outcomes.
type RunRecorder interface {
	DigestRun(outcome string)
}

// Service collects the day's prices and sends the question digest on every
// scheduled slot.
type Service struct {
	scheduler *scheduler.Scheduler
	feed      fetcher.PriceFetcher
	store     storage.PriceWriter
	asker     Asker
	notifier  alerting.Notifier
	recorder  RunRecorder
	logger    zerolog.Logger

	location  *time.Location
	title     string
	questions []string
	locker    storage.AdvisoryLocker
	lockKey   int64
}

// New constructs the digest service. feed, store and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, feed fetcher.PriceFetcher, store storage.PriceWriter, asker Asker, notifier alerting.Notifier, recorder RunRecorder, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Service{
		scheduler: sched,
		feed:      feed,
		store:     store,
		asker:     asker,
		notifier:  notifier,
		recorder:  recorder,
		logger:    logger.With().Str("component", "service").Logger(),
		location:  cfg.ResolveLocation(),
		title:     cfg.Digest.Title,
		questions: cfg.Digest.Questions,
		locker:    locker,
		lockKey:   cfg.Digest.AdvisoryLockKey,
	}
}

// Run begins the scheduled loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessSlot)
}

// ProcessSlot runs one collect-and-digest cycle unless another instance
// holds the advisory lock.
func (s *Service) ProcessSlot(ctx context.Context, slot time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		s.recorder.DigestRun("failed")
		return err
	}
	if !proceed {
		s.logger.Debug().Time("slot", slot).Msg("skip slot because advisory lock held elsewhere")
		s.recorder.DigestRun("skipped")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeSlot(ctx, slot)
}

func (s *Service) executeSlot(ctx context.Context, slot time.Time) error {
	day := storage.Day(slot.In(s.location))
	if s.feed != nil && s.store != nil {
		// A feed outage still lets the digest answer from stored history.
		if _, err := s.Collect(ctx, day); err != nil {
			s.logger.Error().Err(err).Time("day", day).Msg("failed to collect prices")
		}
	}

	if _, err := s.Digest(ctx, slot); err != nil {
		s.recorder.DigestRun("failed")
		return err
	}
	s.recorder.DigestRun("ok")
	return nil
}

// Collect fetches the feed for day and upserts every record. It returns the
// number of records written.
func (s *Service) Collect(ctx context.Context, day time.Time) (int, error) {
	if s.feed == nil || s.store == nil {
		return 0, fmt.Errorf("price feed not configured")
	}
	recs, err := s.feed.FetchPrices(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("fetch prices: %w", err)
	}

	written := 0
	for _, rec := range recs {
		if err := s.store.UpsertPrice(ctx, rec); err != nil {
			return written, fmt.Errorf("upsert %s %s: %w", rec.Metal, rec.Carat, err)
		}
		written++
	}

	s.logger.Info().Time("day", day).Int("records", written).Msg("prices collected")
	return written, nil
}

// Digest asks every configured question and delivers the answers. A
// question that fails is counted, not fatal; the digest fails only when no
// question could be answered.
func (s *Service) Digest(ctx context.Context, slot time.Time) (alerting.Notification, error) {
	note := alerting.Notification{Bucket: slot.In(s.location), Title: s.title}
	for _, question := range s.questions {
		reply, err := s.asker.Ask(ctx, question)
		if err != nil {
			s.logger.Error().Err(err).Str("question", question).Msg("digest question failed")
			note.Failed++
			continue
		}
		note.Entries = append(note.Entries, alerting.Entry{Question: question, Answer: reply.Answer, AsOf: reply.AsOf})
	}

	if len(note.Entries) == 0 {
		return note, fmt.Errorf("digest: all %d questions failed", len(s.questions))
	}

	s.logger.Info().
		Time("slot", slot).
		Int("answered", len(note.Entries)).
		Int("failed", note.Failed).
		Msg("digest ready")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Time("slot", slot).Msg("failed to dispatch digest")
		}
	}
	return note, nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

type nopRecorder struct{}

func (nopRecorder) DigestRun(string) {}
