package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func TestStreamHappyPathEndsWithSingleDone(t *testing.T) {
	gen := &mockGenerator{stream: &mockTokenStream{
		fragments: []string{"Use a planetary gearbox ", "[Chunk 1]", " for high ratios."},
	}}
	svc := New(gen, zap.NewNop())

	events := collect(svc.Stream(context.Background(), domain.Prompt{Chunks: contextChunks()}))

	var tokens, citations, done, errs int
	for _, ev := range events {
		switch ev.Kind {
		case domain.EventToken:
			tokens++
		case domain.EventCitation:
			citations++
		case domain.EventDone:
			done++
		case domain.EventError:
			errs++
		}
	}
	if tokens != 3 || citations != 1 || done != 1 || errs != 0 {
		t.Fatalf("tokens=%d citations=%d done=%d errors=%d", tokens, citations, done, errs)
	}

	last := events[len(events)-1]
	if last.Kind != domain.EventDone {
		t.Fatalf("last event kind = %q, want done", last.Kind)
	}
	if last.Done.TokenCount != 3 {
		t.Fatalf("done token count = %d, want 3", last.Done.TokenCount)
	}
	if len(last.Done.CitedChunkIDs) != 1 || last.Done.CitedChunkIDs[0] != "c1" {
		t.Fatalf("cited ids = %v", last.Done.CitedChunkIDs)
	}
	if !gen.stream.closed {
		t.Fatal("upstream stream not closed")
	}
}

func TestStreamTokensArriveInOrder(t *testing.T) {
	gen := &mockGenerator{stream: &mockTokenStream{fragments: []string{"a", "b", "c"}}}
	svc := New(gen, zap.NewNop())

	var got []string
	for ev := range svc.Stream(context.Background(), domain.Prompt{}) {
		if ev.Kind == domain.EventToken {
			got = append(got, ev.Token.Text)
		}
	}
	if strings.Join(got, "") != "abc" {
		t.Fatalf("token order = %v", got)
	}
}

func TestStreamUpstreamFailureEndsWithSingleError(t *testing.T) {
	gen := &mockGenerator{stream: &mockTokenStream{
		fragments: []string{"partial "},
		finalErr:  errors.New("connection reset"),
	}}
	svc := New(gen, zap.NewNop())

	events := collect(svc.Stream(context.Background(), domain.Prompt{}))

	last := events[len(events)-1]
	if last.Kind != domain.EventError {
		t.Fatalf("last event kind = %q, want error", last.Kind)
	}
	if last.Error.Kind != errKindUpstream {
		t.Fatalf("error kind = %q, want %q", last.Error.Kind, errKindUpstream)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Kind == domain.EventDone || ev.Kind == domain.EventError {
			t.Fatalf("terminal event before the end: %q", ev.Kind)
		}
	}
}

func TestStreamOpenFailureEmitsErrorEvent(t *testing.T) {
	gen := &mockGenerator{openErr: domain.ErrRateLimited}
	svc := New(gen, zap.NewNop())

	events := collect(svc.Stream(context.Background(), domain.Prompt{}))

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Kind != domain.EventError || events[0].Error.Kind != errKindRateLimited {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestStreamClientCancelSuppressesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered behavior: with the context already gone, emit must not block
	// and the channel must close without requiring a reader.
	gen := &mockGenerator{stream: &mockTokenStream{
		fragments: make([]string, 64), // more fragments than the channel buffers
	}}
	for i := range gen.stream.fragments {
		gen.stream.fragments[i] = "x"
	}
	svc := New(gen, zap.NewNop())

	events := svc.Stream(ctx, domain.Prompt{})

	// Drain whatever made it out before cancellation won the select; the
	// channel must still close promptly.
	count := 0
	for range events {
		count++
	}
	if count > 16 {
		t.Fatalf("events after cancel = %d", count)
	}
}

func TestStreamNoEventsFollowTerminal(t *testing.T) {
	gen := &mockGenerator{stream: &mockTokenStream{fragments: []string{"only one"}}}
	svc := New(gen, zap.NewNop())

	events := collect(svc.Stream(context.Background(), domain.Prompt{}))

	terminalAt := -1
	for i, ev := range events {
		if ev.Kind == domain.EventDone || ev.Kind == domain.EventError {
			terminalAt = i
			break
		}
	}
	if terminalAt != len(events)-1 {
		t.Fatalf("terminal event at %d of %d", terminalAt, len(events))
	}
}
