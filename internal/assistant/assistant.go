package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"metalwatch/internal/answer"
	"metalwatch/internal/insight"
	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
)

// ErrStoreUnavailable is returned when price data cannot be read. The
// underlying cause is logged, not returned.
var ErrStoreUnavailable = errors.New("price data is temporarily unavailable")

// Metrics receives pipeline counters.
type Metrics interface {
	Question(intent string)
	Answer(source string)
	StoreFailure()
}

// Catalog supplies extra metal codes for detection.
type Catalog interface {
	Get() []string
	RefreshIfStale(ctx context.Context) ([]string, error)
}

// Options tune the question pipeline.
type Options struct {
	// TrailingDays is the trend and average window when no range is given.
	TrailingDays int
	// EvidenceExcerptChars caps the evidence returned with a reply.
	EvidenceExcerptChars int
}

// Reply is a complete answer to one question.
type Reply struct {
	RequestID string        `json:"request_id"`
	Answer    string        `json:"answer"`
	Evidence  string        `json:"evidence"`
	Intent    query.Intent  `json:"intent"`
	Source    answer.Source `json:"source"`
	AsOf      string        `json:"as_of,omitempty"`
}

// StreamReply carries the metadata of a streamed answer; the text arrives
// on Deltas, which closes when the answer is complete.
type StreamReply struct {
	RequestID string
	Evidence  string
	Intent    query.Intent
	AsOf      string
	Deltas    <-chan answer.Delta
}

// Assistant answers free-text price questions from stored data.
type Assistant struct {
	parser   *query.Parser
	resolver *resolver.Resolver
	synth    *answer.Synthesizer
	catalog  Catalog
	metrics  Metrics
	opts     Options
	logger   zerolog.Logger
}

// New wires the pipeline. catalog and metrics may be nil.
func New(parser *query.Parser, res *resolver.Resolver, synth *answer.Synthesizer, catalog Catalog, metrics Metrics, opts Options, logger zerolog.Logger) *Assistant {
	if opts.TrailingDays <= 0 {
		opts.TrailingDays = 7
	}
	if opts.EvidenceExcerptChars <= 0 {
		opts.EvidenceExcerptChars = 1500
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Assistant{
		parser:   parser,
		resolver: res,
		synth:    synth,
		catalog:  catalog,
		metrics:  metrics,
		opts:     opts,
		logger:   logger.With().Str("component", "assistant").Logger(),
	}
}

// Analyze turns text into a structured question.
func (a *Assistant) Analyze(ctx context.Context, text string) query.Question {
	var extra []string
	if a.catalog != nil {
		symbols, err := a.catalog.RefreshIfStale(ctx)
		if err != nil {
			a.logger.Debug().Err(err).Msg("using cached symbol catalog")
		}
		extra = symbols
	}
	return query.Analyze(text, a.parser, query.NewDetector(extra))
}

// Ask answers one question. Only store failures are returned as errors,
// and always as ErrStoreUnavailable.
func (a *Assistant) Ask(ctx context.Context, text string) (Reply, error) {
	id := uuid.NewString()
	logger := a.logger.With().Str("request_id", id).Logger()
	started := time.Now()

	c, q, err := a.prepare(ctx, text, logger)
	if err != nil {
		return Reply{RequestID: id, Intent: q.Intent}, err
	}

	res := a.synth.Answer(ctx, text, c)
	a.metrics.Answer(string(res.Source))
	logger.Info().
		Str("intent", string(q.Intent)).
		Str("date", q.Date.String()).
		Str("source", string(res.Source)).
		Dur("elapsed", time.Since(started)).
		Msg("question answered")

	return Reply{
		RequestID: id,
		Answer:    res.Text,
		Evidence:  excerpt(c.EvidenceText(), a.opts.EvidenceExcerptChars),
		Intent:    q.Intent,
		Source:    res.Source,
		AsOf:      asOf(c),
	}, nil
}

// AskStream answers one question incrementally. Data is read before it
// returns, so store failures surface here; cancelling ctx stops the stream.
func (a *Assistant) AskStream(ctx context.Context, text string) (StreamReply, error) {
	id := uuid.NewString()
	logger := a.logger.With().Str("request_id", id).Logger()

	c, q, err := a.prepare(ctx, text, logger)
	if err != nil {
		return StreamReply{RequestID: id, Intent: q.Intent}, err
	}

	deltas := a.synth.Stream(ctx, text, c)
	out := make(chan answer.Delta)
	go func() {
		defer close(out)
		var last answer.Source
		defer func() {
			if last != "" {
				a.metrics.Answer(string(last))
			}
			logger.Info().Str("intent", string(q.Intent)).Str("source", string(last)).Msg("question streamed")
		}()
		for d := range deltas {
			select {
			case out <- d:
				last = d.Source
			case <-ctx.Done():
				// let the synthesizer observe cancellation and close
				for range deltas {
				}
				return
			}
		}
	}()

	return StreamReply{
		RequestID: id,
		Evidence:  excerpt(c.EvidenceText(), a.opts.EvidenceExcerptChars),
		Intent:    q.Intent,
		AsOf:      asOf(c),
		Deltas:    out,
	}, nil
}

func (a *Assistant) prepare(ctx context.Context, text string, logger zerolog.Logger) (insight.Context, query.Question, error) {
	q := a.Analyze(ctx, text)
	a.metrics.Question(string(q.Intent))
	logger.Debug().
		Str("intent", string(q.Intent)).
		Str("date", q.Date.String()).
		Str("rule", q.DateRule).
		Strs("metals", q.Metals).
		Msg("question analyzed")

	c, err := a.Build(ctx, q)
	if err != nil {
		a.metrics.StoreFailure()
		logger.Error().Err(err).Msg("price store failure")
		return insight.Context{}, q, ErrStoreUnavailable
	}
	return c, q, nil
}

func asOf(c insight.Context) string {
	if c.AsOf.IsZero() {
		return ""
	}
	return c.AsOf.Format("2006-01-02")
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

type nopMetrics struct{}

func (nopMetrics) Question(string) {}
func (nopMetrics) Answer(string)   {}
func (nopMetrics) StoreFailure()   {}
