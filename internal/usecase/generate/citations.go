package generate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

var citationPattern = regexp.MustCompile(`\[Chunk\s+\d+(?:\s*,\s*\d+)*\]`)

// citationScanner detects "[Chunk N]" and "[Chunk N, M]" markers as they
// complete across fragment boundaries. It keeps only the unscanned tail after
// the last possible marker start, so work per fragment stays proportional to
// the fragment, not the whole answer.
type citationScanner struct {
	chunks []domain.Chunk
	tail   string
	cited  map[string]bool
	order  []string
}

func newCitationScanner(chunks []domain.Chunk) *citationScanner {
	return &citationScanner{chunks: chunks, cited: make(map[string]bool)}
}

// feed consumes one fragment and returns citation events for every marker
// that completed with it. Each chunk is cited at most once per stream.
func (s *citationScanner) feed(fragment string) []domain.Event {
	s.tail += fragment

	var events []domain.Event
	for _, loc := range citationPattern.FindAllStringIndex(s.tail, -1) {
		events = append(events, s.resolve(s.tail[loc[0]:loc[1]])...)
	}

	// Drop everything before the last '[' that could still open a marker;
	// without one the whole tail is settled text.
	if open := strings.LastIndexByte(s.tail, '['); open >= 0 && couldOpenMarker(s.tail[open:]) {
		s.tail = s.tail[open:]
	} else {
		s.tail = ""
	}
	return events
}

// citedChunkIDs returns the cited ids in first-citation order.
func (s *citationScanner) citedChunkIDs() []string {
	return s.order
}

// resolve maps the 1-based numbers inside a completed marker onto the context
// chunk list. Numbers outside the list are ignored rather than failing the
// stream; the model occasionally invents references.
func (s *citationScanner) resolve(marker string) []domain.Event {
	body := strings.TrimSuffix(strings.TrimPrefix(marker, "[Chunk"), "]")

	var events []domain.Event
	for _, field := range strings.Split(body, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 1 || n > len(s.chunks) {
			continue
		}
		chunk := s.chunks[n-1]
		if s.cited[chunk.ID] {
			continue
		}
		s.cited[chunk.ID] = true
		s.order = append(s.order, chunk.ID)
		events = append(events, domain.NewCitationEvent(chunk.ID, chunk.HeadingPath, chunk.URL))
	}
	return events
}

// couldOpenMarker reports whether text is a prefix of an incomplete citation
// marker, meaning more fragments might still complete it.
func couldOpenMarker(text string) bool {
	const prefix = "[Chunk "
	if len(text) < len(prefix) {
		return strings.HasPrefix(prefix, text)
	}
	if !strings.HasPrefix(text, prefix) {
		return false
	}
	// Already-closed markers were handled by the full-pattern scan.
	return !strings.ContainsRune(text, ']')
}
