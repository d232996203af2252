package domain

// EventKind discriminates stream events sent to the caller.
type EventKind string

const (
	// EventToken carries one incremental text fragment.
	EventToken EventKind = "token"
	// EventCitation reports a resolved citation marker.
	EventCitation EventKind = "citation"
	// EventDone terminates a successful stream with aggregate stats.
	EventDone EventKind = "done"
	// EventError terminates a failed stream.
	EventError EventKind = "error"
)

// Event is one entry of the ordered answer stream. Exactly one of the payload
// pointers is set, matching Kind. A stream ends with exactly one of done or
// error; nothing follows a terminal event.
type Event struct {
	Kind     EventKind
	Token    *TokenEvent
	Citation *CitationEvent
	Done     *DoneEvent
	Error    *ErrorEvent
}

// TokenEvent is an incremental answer fragment, forwarded as received.
type TokenEvent struct {
	Text string
}

// CitationEvent reports that the answer referenced a context chunk.
type CitationEvent struct {
	ChunkID     string
	HeadingPath []string
	URL         string
}

// DoneEvent carries aggregate stream statistics and the cited chunk ids,
// which the caller-owned conversation store may persist.
type DoneEvent struct {
	TokenCount    int
	ElapsedMillis int64
	CitedChunkIDs []string
}

// ErrorEvent reports an upstream generation failure.
type ErrorEvent struct {
	Kind    string
	Message string
}

// NewTokenEvent wraps a text fragment.
func NewTokenEvent(text string) Event {
	return Event{Kind: EventToken, Token: &TokenEvent{Text: text}}
}

// NewCitationEvent wraps a resolved citation.
func NewCitationEvent(chunkID string, headingPath []string, url string) Event {
	return Event{Kind: EventCitation, Citation: &CitationEvent{
		ChunkID: chunkID, HeadingPath: headingPath, URL: url,
	}}
}

// NewDoneEvent wraps final stream statistics.
func NewDoneEvent(tokenCount int, elapsedMillis int64, citedChunkIDs []string) Event {
	return Event{Kind: EventDone, Done: &DoneEvent{
		TokenCount: tokenCount, ElapsedMillis: elapsedMillis, CitedChunkIDs: citedChunkIDs,
	}}
}

// NewErrorEvent wraps an upstream failure.
func NewErrorEvent(kind, message string) Event {
	return Event{Kind: EventError, Error: &ErrorEvent{Kind: kind, Message: message}}
}
