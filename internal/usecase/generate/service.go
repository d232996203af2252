package generate

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

const (
	errKindRateLimited = "rate_limited"
	errKindCanceled    = "canceled"
	errKindUpstream    = "upstream"
)

// Service drives one answer stream: forwards provider fragments as token
// events, detects citations as they complete, and closes the stream with
// exactly one terminal event. Nothing is ever emitted after done or error.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Stream starts generation for the prompt and returns the ordered event
// channel. The channel is closed after the terminal event. Cancelling ctx
// releases the provider connection and suppresses further events.
func (s *Service) Stream(ctx context.Context, prompt domain.Prompt) <-chan domain.Event {
	events := make(chan domain.Event, 16)
	go s.run(ctx, prompt, events)
	return events
}

func (s *Service) run(ctx context.Context, prompt domain.Prompt, events chan<- domain.Event) {
	defer close(events)
	start := time.Now()

	upstream, err := s.generator.GenerateStream(ctx, prompt)
	if err != nil {
		s.fail(ctx, events, err)
		return
	}
	defer upstream.Close()

	scanner := newCitationScanner(prompt.Chunks)
	tokens := 0
	for {
		fragment, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(ctx, events, err)
			return
		}
		if fragment == "" {
			continue
		}
		tokens++
		if !s.emit(ctx, events, domain.NewTokenEvent(fragment)) {
			return
		}
		for _, ev := range scanner.feed(fragment) {
			if !s.emit(ctx, events, ev) {
				return
			}
		}
	}

	cited := scanner.citedChunkIDs()
	elapsed := time.Since(start).Milliseconds()
	s.emit(ctx, events, domain.NewDoneEvent(tokens, elapsed, cited))

	metrics.GenerationStreamsTotal.WithLabelValues("done").Inc()
	metrics.GenerationTokensTotal.Add(float64(tokens))
	metrics.GenerationCitationsTotal.Add(float64(len(cited)))
}

// fail emits the single error event and records the terminal state.
func (s *Service) fail(ctx context.Context, events chan<- domain.Event, err error) {
	kind := classify(ctx, err)
	s.logger.Warn("Generation stream failed",
		zap.String("kind", kind),
		zap.Error(err))
	s.emit(ctx, events, domain.NewErrorEvent(kind, err.Error()))
	metrics.GenerationStreamsTotal.WithLabelValues("error").Inc()
}

// emit delivers an event unless the caller already went away.
func (s *Service) emit(ctx context.Context, events chan<- domain.Event, ev domain.Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func classify(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return errKindCanceled
	case errors.Is(err, domain.ErrRateLimited):
		return errKindRateLimited
	default:
		return errKindUpstream
	}
}
