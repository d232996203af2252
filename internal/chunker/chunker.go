// Package chunker splits parsed document sections into token-bounded
// passages. Chunks never span sections and fenced code blocks are never
// split, even when keeping one whole pushes a chunk past the size cap.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const (
	DefaultMaxTokens     = 400
	DefaultMinTokens     = 64
	DefaultOverlapTokens = 40
)

type Config struct {
	MaxTokens     int `yaml:"max_tokens"`
	MinTokens     int `yaml:"min_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

func (c Config) normalized() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MinTokens <= 0 {
		c.MinTokens = DefaultMinTokens
	}
	if c.MinTokens > c.MaxTokens {
		c.MinTokens = c.MaxTokens / 2
	}
	if c.OverlapTokens < 0 {
		c.OverlapTokens = 0
	}
	if c.OverlapTokens >= c.MaxTokens/2 {
		c.OverlapTokens = c.MaxTokens / 4
	}
	return c
}

// Chunker is deterministic: identical input and config yield identical
// chunk boundaries and ids. Safe for concurrent use.
type Chunker struct {
	cfg     Config
	counter domain.TokenCounter
}

func New(cfg Config, counter domain.TokenCounter) *Chunker {
	return &Chunker{cfg: cfg.normalized(), counter: counter}
}

// Chunk splits every section of doc into ordered chunks. Chunk indexes
// run document-wide so citation references stay unambiguous.
func (c *Chunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	index := 0
	for _, section := range doc.Sections {
		sectionChunks, err := c.chunkSection(doc, section, &index)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, sectionChunks...)
	}

	return chunks, nil
}

// unit is the smallest accumulation step: a paragraph, a sentence of an
// oversized paragraph, or a whole fenced code block.
type unit struct {
	text   string
	tokens int
}

func (c *Chunker) chunkSection(doc domain.Document, section domain.Section, index *int) ([]domain.Chunk, error) {
	units := c.buildUnits(section.Body)
	if len(units) == 0 {
		return nil, nil
	}

	var (
		chunks  []domain.Chunk
		pending []string
		tokens  int
		carry   string
	)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}

		parts := pending
		overlap := 0
		if carry != "" {
			parts = append([]string{carry}, parts...)
			overlap = c.counter.Count(carry)
		}

		text := strings.Join(parts, "\n\n")
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: empty chunk for %s section %q", domain.ErrChunking, doc.Source, section.Breadcrumb())
		}

		chunk := domain.Chunk{
			ID:            chunkID(doc.Source, section.Anchor, *index),
			Source:        doc.Source,
			Text:          text,
			TokenCount:    c.counter.Count(text),
			HeadingPath:   section.HeadingPath,
			URL:           chunkURL(doc.Source, section.Anchor),
			ChunkIndex:    *index,
			OverlapTokens: overlap,
		}
		chunks = append(chunks, chunk)
		*index++

		carry = c.overlapTail(strings.Join(pending, "\n\n"))
		pending = nil
		// The carry occupies part of the next chunk's budget so the
		// size cap holds for overlapped chunks too.
		tokens = c.counter.Count(carry)
		return nil
	}

	for _, u := range units {
		if tokens+u.tokens > c.cfg.MaxTokens {
			// Close at the cap. A closed chunk may land under the
			// minimum when the next unit is large; that beats
			// emitting an oversized one.
			if len(pending) > 0 {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			// A large unit right after a flush: give up the overlap
			// carry rather than break the cap for it.
			if len(pending) == 0 && carry != "" && tokens+u.tokens > c.cfg.MaxTokens {
				carry = ""
				tokens = 0
			}
		}

		pending = append(pending, u.text)
		tokens += u.tokens
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return chunks, nil
}

func (c *Chunker) buildUnits(body []domain.Block) []unit {
	var units []unit

	for _, block := range body {
		switch block.Kind {
		case domain.BlockCode:
			text := fenced(block)
			units = append(units, unit{text: text, tokens: c.counter.Count(text)})
		default:
			for _, para := range splitParagraphs(block.Text) {
				n := c.counter.Count(para)
				if n <= c.cfg.MaxTokens {
					units = append(units, unit{text: para, tokens: n})
					continue
				}
				for _, sentence := range splitSentences(para) {
					units = append(units, unit{text: sentence, tokens: c.counter.Count(sentence)})
				}
			}
		}
	}

	return units
}

// overlapTail returns the trailing words of text worth at most the
// configured overlap token count. Word granularity keeps the tail a
// readable continuation rather than a mid-token cut.
func (c *Chunker) overlapTail(text string) string {
	if c.cfg.OverlapTokens == 0 {
		return ""
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	start := len(words)
	for start > 0 {
		candidate := strings.Join(words[start-1:], " ")
		if c.counter.Count(candidate) > c.cfg.OverlapTokens {
			break
		}
		start--
	}
	if start == len(words) {
		return ""
	}

	return strings.Join(words[start:], " ")
}

func splitParagraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		if trimmed := strings.TrimSpace(para); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitSentences breaks a paragraph on terminal punctuation followed by
// whitespace. Good enough for prose; an unbreakable run simply becomes
// one oversized unit.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)

	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if isTerminal(runes[i]) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}

	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func fenced(block domain.Block) string {
	return "```" + block.Lang + "\n" + strings.TrimRight(block.Text, "\n") + "\n```"
}

func chunkID(source, anchor string, index int) string {
	sum := sha256.Sum256([]byte(source + "\x00" + anchor + "\x00" + fmt.Sprintf("%d", index)))
	return hex.EncodeToString(sum[:])[:16]
}

func chunkURL(source, anchor string) string {
	if anchor == "" {
		return source
	}
	return source + "#" + anchor
}
