package ragdex

import "github.com/kailas-cloud/ragdex/internal/domain"

// Document is one ingestion input.
type Document struct {
	Source  string
	Content []byte
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	RunID     string
	Documents int
	Skipped   int
	Chunks    int
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	ChunkID string
	Source  string
	Text    string
	Heading string
	URL     string
	Score   float64
}

// Turn is one prior conversation exchange. Role is "user" or "assistant".
type Turn struct {
	Role string
	Text string
}

// EventKind discriminates answer stream events.
type EventKind string

const (
	// EventToken carries one incremental answer fragment.
	EventToken EventKind = "token"
	// EventCitation reports a resolved context reference.
	EventCitation EventKind = "citation"
	// EventDone terminates a successful stream.
	EventDone EventKind = "done"
	// EventError terminates a failed stream.
	EventError EventKind = "error"
)

// Event is one entry of an answer stream.
type Event struct {
	Kind EventKind

	// Token fields.
	Text string

	// Citation fields.
	ChunkID     string
	HeadingPath []string
	URL         string

	// Done fields.
	TokenCount    int
	ElapsedMillis int64
	CitedChunkIDs []string

	// Error fields.
	ErrKind    string
	ErrMessage string
}

func toEvent(ev domain.Event) Event {
	out := Event{Kind: EventKind(ev.Kind)}
	switch ev.Kind {
	case domain.EventToken:
		out.Text = ev.Token.Text
	case domain.EventCitation:
		out.ChunkID = ev.Citation.ChunkID
		out.HeadingPath = ev.Citation.HeadingPath
		out.URL = ev.Citation.URL
	case domain.EventDone:
		out.TokenCount = ev.Done.TokenCount
		out.ElapsedMillis = ev.Done.ElapsedMillis
		out.CitedChunkIDs = ev.Done.CitedChunkIDs
	case domain.EventError:
		out.ErrKind = ev.Error.Kind
		out.ErrMessage = ev.Error.Message
	}
	return out
}
