package retrieval

import (
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain/search/candidate"
)

// DefaultFusionConstant is the standard RRF constant from Cormack et al. 2009.
const DefaultFusionConstant = 60

// fuseRRF merges ranked branch lists via Reciprocal Rank Fusion.
// score(d) = sum over branches of 1/(c + rank(d)), rank starting at 1.
// A chunk ranked in several branches sums a contribution from each, so
// agreement between branches outranks a single strong branch position.
func fuseRRF(branches [][]candidate.Candidate, c, topK int) []candidate.Candidate {
	type scored struct {
		cand  candidate.Candidate
		score float64
	}

	merged := make(map[string]*scored)

	for _, branch := range branches {
		for rank, cand := range branch {
			contribution := 1.0 / float64(c+rank+1)
			if existing, ok := merged[cand.ChunkID()]; ok {
				existing.score += contribution
				existing.cand = existing.cand.MergeBranchScores(&cand)
			} else {
				merged[cand.ChunkID()] = &scored{cand: cand, score: contribution}
			}
		}
	}

	fused := make([]candidate.Candidate, 0, len(merged))
	for _, s := range merged {
		fused = append(fused, s.cand.WithFusedScore(s.score))
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].FusedScore() != fused[j].FusedScore() {
			return fused[i].FusedScore() > fused[j].FusedScore()
		}
		return fused[i].ChunkID() < fused[j].ChunkID()
	})

	if len(fused) > topK {
		fused = fused[:topK]
	}

	return fused
}
