package generate

import (
	"context"
	"io"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// mockTokenStream replays scripted fragments, then ends with finalErr
// (io.EOF for a clean finish).
type mockTokenStream struct {
	fragments []string
	finalErr  error
	pos       int
	closed    bool
}

func (m *mockTokenStream) Recv() (string, error) {
	if m.pos >= len(m.fragments) {
		if m.finalErr != nil {
			return "", m.finalErr
		}
		return "", io.EOF
	}
	fragment := m.fragments[m.pos]
	m.pos++
	return fragment, nil
}

func (m *mockTokenStream) Close() error {
	m.closed = true
	return nil
}

type mockGenerator struct {
	stream  *mockTokenStream
	openErr error
	prompt  domain.Prompt
}

func (m *mockGenerator) GenerateStream(_ context.Context, prompt domain.Prompt) (TokenStream, error) {
	m.prompt = prompt
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

func collect(events <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func contextChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", HeadingPath: []string{"Drives", "Gearboxes"}, URL: "docs/drives.md#gearboxes"},
		{ID: "c2", HeadingPath: []string{"Control"}, URL: "docs/control.md"},
		{ID: "c3", HeadingPath: []string{"Sensors"}, URL: "docs/sensors.md"},
	}
}
