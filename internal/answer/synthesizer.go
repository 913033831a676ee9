package answer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"metalwatch/internal/insight"
)

// Source tells where an answer's text came from.
type Source string

const (
	SourceSuggested Source = "suggested"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Result is a complete answer.
type Result struct {
	Text   string
	Source Source
}

// Delta is one piece of a streamed answer.
type Delta struct {
	Text   string
	Source Source
}

// Observer records generative call outcomes.
type Observer interface {
	ObserveGeneration(outcome string, elapsed time.Duration)
}

// Options tune the synthesizer.
type Options struct {
	Timeout time.Duration
}

var elaborationCue = regexp.MustCompile(`(?i)\b(?:explain|why|tell me more)\b`)

// NeedsElaboration reports whether the question asks for more than the
// computed answer.
func NeedsElaboration(question string) bool {
	return elaborationCue.MatchString(question)
}

// Synthesizer turns a built context into answer text, calling the generative
// backend only when the computed answer is not enough.
type Synthesizer struct {
	gen      Generator
	opts     Options
	observer Observer
	logger   zerolog.Logger
}

// New constructs a Synthesizer. gen may be nil, in which case every answer
// comes from the computed context.
func New(gen Generator, opts Options, observer Observer, logger zerolog.Logger) *Synthesizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	return &Synthesizer{
		gen:      gen,
		opts:     opts,
		observer: observer,
		logger:   logger.With().Str("component", "synthesizer").Logger(),
	}
}

func (s *Synthesizer) direct(question string, c insight.Context) bool {
	if s.gen == nil {
		return true
	}
	return c.HasSuggestion() && !NeedsElaboration(question)
}

func request(question string, c insight.Context) Request {
	return Request{
		SystemPrompt: SystemPrompt,
		Evidence:     c.EvidenceText(),
		Suggested:    c.Suggested,
		Question:     question,
	}
}

func (s *Synthesizer) observe(outcome string, started time.Time) {
	if s.observer != nil {
		s.observer.ObserveGeneration(outcome, time.Since(started))
	}
}

// Answer returns the final text for question. It never fails: generative
// errors, timeouts and empty responses yield the computed fallback.
func (s *Synthesizer) Answer(ctx context.Context, question string, c insight.Context) Result {
	if s.direct(question, c) {
		if c.HasSuggestion() {
			return Result{Text: c.Suggested, Source: SourceSuggested}
		}
		return Result{Text: c.Fallback(), Source: SourceFallback}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	started := time.Now()
	text, err := s.gen.Generate(callCtx, request(question, c))
	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		outcome := classify(callCtx, err)
		s.observe(outcome, started)
		s.logger.Warn().Err(err).Str("outcome", outcome).Msg("generative call failed; using computed answer")
		return Result{Text: c.Fallback(), Source: SourceFallback}
	case text == "":
		s.observe("empty", started)
		s.logger.Warn().Msg("generative call returned no text; using computed answer")
		return Result{Text: c.Fallback(), Source: SourceFallback}
	}
	s.observe("ok", started)
	return Result{Text: text, Source: SourceGenerated}
}

// Stream emits the answer incrementally. The channel is closed when the
// answer is complete or ctx is cancelled; after cancellation nothing more
// is sent.
func (s *Synthesizer) Stream(ctx context.Context, question string, c insight.Context) <-chan Delta {
	out := make(chan Delta)
	go func() {
		defer close(out)
		if s.direct(question, c) {
			if c.HasSuggestion() {
				send(ctx, out, Delta{Text: c.Suggested, Source: SourceSuggested})
				return
			}
			send(ctx, out, Delta{Text: c.Fallback(), Source: SourceFallback})
			return
		}
		s.stream(ctx, question, c, out)
	}()
	return out
}

func (s *Synthesizer) stream(ctx context.Context, question string, c insight.Context, out chan<- Delta) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	started := time.Now()
	emitted := false
	fail := func(outcome string, err error) {
		if ctx.Err() != nil {
			s.observe("cancelled", started)
			return
		}
		s.observe(outcome, started)
		s.logger.Warn().Err(err).Str("outcome", outcome).Bool("partial", emitted).Msg("generative stream failed; using computed answer")
		text := c.Fallback()
		if emitted {
			text = "\n\n" + text
		}
		send(ctx, out, Delta{Text: text, Source: SourceFallback})
	}

	chunks, err := s.gen.Stream(callCtx, request(question, c))
	if err != nil {
		fail(classify(callCtx, err), err)
		return
	}

	for {
		select {
		case <-callCtx.Done():
			fail(classify(callCtx, callCtx.Err()), callCtx.Err())
			return
		case chunk, ok := <-chunks:
			if !ok {
				if !emitted {
					fail("empty", errors.New("stream ended without text"))
					return
				}
				s.observe("ok", started)
				return
			}
			if chunk.Err != nil {
				fail(classify(callCtx, chunk.Err), chunk.Err)
				return
			}
			if chunk.Text == "" {
				continue
			}
			if !send(ctx, out, Delta{Text: chunk.Text, Source: SourceGenerated}) {
				s.observe("cancelled", started)
				return
			}
			emitted = true
		}
	}
}

func send(ctx context.Context, out chan<- Delta, d Delta) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func classify(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "error"
}
