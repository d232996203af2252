// Package candidate holds the transient per-query retrieval hit. Candidates
// are never persisted; they live only for the duration of one request.
package candidate

import "github.com/kailas-cloud/ragdex/internal/domain"

// Candidate is a single retrieval hit with per-branch and fused scores.
// VectorScore and KeywordScore are zero when the chunk was absent from that
// branch; FusedScore is assigned by rank fusion.
type Candidate struct {
	chunk        domain.Chunk
	vectorScore  float64
	keywordScore float64
	fusedScore   float64
}

// New creates a candidate for a retrieved chunk.
func New(chunk domain.Chunk, vectorScore, keywordScore float64) Candidate {
	return Candidate{chunk: chunk, vectorScore: vectorScore, keywordScore: keywordScore}
}

// ChunkID returns the retrieved chunk's identifier.
func (c *Candidate) ChunkID() string { return c.chunk.ID }

// Chunk returns the retrieved chunk.
func (c *Candidate) Chunk() domain.Chunk { return c.chunk }

// VectorScore returns the cosine similarity from the vector branch.
func (c *Candidate) VectorScore() float64 { return c.vectorScore }

// KeywordScore returns the BM25 score from the keyword branch.
func (c *Candidate) KeywordScore() float64 { return c.keywordScore }

// FusedScore returns the reciprocal-rank-fusion score.
func (c *Candidate) FusedScore() float64 { return c.fusedScore }

// WithFusedScore returns a copy carrying the fused score.
func (c *Candidate) WithFusedScore(score float64) Candidate {
	out := *c
	out.fusedScore = score
	return out
}

// MergeBranchScores returns a copy with the non-zero branch scores of other
// folded in. Used when the same chunk appears in both branches.
func (c *Candidate) MergeBranchScores(other *Candidate) Candidate {
	out := *c
	if out.vectorScore == 0 {
		out.vectorScore = other.vectorScore
	}
	if out.keywordScore == 0 {
		out.keywordScore = other.keywordScore
	}
	return out
}
