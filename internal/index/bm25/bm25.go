// Package bm25 implements an in-process keyword index over the chunk
// corpus. Ingestion writes and query reads are temporally separated, so
// a single RWMutex is enough.
package bm25

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
	"github.com/kailas-cloud/ragdex/internal/domain/search/filter"
)

const (
	// DefaultK1 controls term-frequency saturation.
	DefaultK1 = 1.2
	// DefaultB controls document-length normalization.
	DefaultB = 0.75
)

type Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

func (c Config) normalized() Config {
	if c.K1 <= 0 {
		c.K1 = DefaultK1
	}
	if c.B < 0 || c.B > 1 {
		c.B = DefaultB
	}
	return c
}

type entry struct {
	chunk  domain.Chunk
	tf     map[string]int
	length int
}

// Index scores chunks with the Okapi BM25 ranking function.
type Index struct {
	cfg Config

	mu       sync.RWMutex
	entries  map[string]*entry
	df       map[string]int
	totalLen int
}

func New(cfg Config) *Index {
	return &Index{
		cfg:     cfg.normalized(),
		entries: make(map[string]*entry),
		df:      make(map[string]int),
	}
}

// Upsert indexes the chunks, replacing any prior entry with the same id.
func (i *Index) Upsert(chunks ...domain.Chunk) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, chunk := range chunks {
		i.removeLocked(chunk.ID)

		tf := make(map[string]int)
		terms := tokenize(chunk.Text + " " + chunk.Breadcrumb())
		for _, term := range terms {
			tf[term]++
		}

		for term := range tf {
			i.df[term]++
		}
		i.totalLen += len(terms)
		i.entries[chunk.ID] = &entry{chunk: chunk, tf: tf, length: len(terms)}
	}
}

// DeleteBySource drops every chunk indexed from the given source, used
// when a document is re-ingested and replaced wholesale.
func (i *Index) DeleteBySource(source string) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for id, e := range i.entries {
		if e.chunk.Source == source {
			i.removeLocked(id)
			removed++
		}
	}
	return removed
}

func (i *Index) removeLocked(id string) {
	e, ok := i.entries[id]
	if !ok {
		return
	}

	for term := range e.tf {
		if i.df[term]--; i.df[term] <= 0 {
			delete(i.df, term)
		}
	}
	i.totalLen -= e.length
	delete(i.entries, id)
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Search returns up to topN candidates by descending BM25 score. Chunks
// with no query term in common score zero and are omitted; an empty
// result is valid, not an error.
func (i *Index) Search(query string, topN int, expr *filter.Expression) []candidate.Candidate {
	terms := tokenize(query)
	if len(terms) == 0 || topN <= 0 {
		return nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.entries) == 0 {
		return nil
	}

	avgdl := float64(i.totalLen) / float64(len(i.entries))

	type scored struct {
		chunk domain.Chunk
		score float64
	}
	var hits []scored

	for _, e := range i.entries {
		if expr != nil && !expr.Matches(e.chunk.Metadata()) {
			continue
		}

		score := 0.0
		for _, term := range terms {
			tf := e.tf[term]
			if tf == 0 {
				continue
			}
			norm := i.cfg.K1 * (1 - i.cfg.B + i.cfg.B*float64(e.length)/avgdl)
			score += i.idf(term) * float64(tf) * (i.cfg.K1 + 1) / (float64(tf) + norm)
		}
		if score > 0 {
			hits = append(hits, scored{chunk: e.chunk, score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].chunk.ID < hits[b].chunk.ID
	})

	if len(hits) > topN {
		hits = hits[:topN]
	}

	out := make([]candidate.Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, candidate.New(h.chunk, 0, h.score))
	}
	return out
}

// idf uses the non-negative Robertson-Sparck Jones formulation.
func (i *Index) idf(term string) float64 {
	n := float64(len(i.entries))
	df := float64(i.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// tokenize lowercases and splits on anything that is not a letter or a
// digit. Both indexing and querying go through it so terms line up.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
