package resolver

import (
	"sort"

	"github.com/strackan/cmdrouter/internal/pattern"
	"github.com/strackan/cmdrouter/internal/vector"
)

// SemanticStage ranks eligible patterns with a stored embedding by cosine
// similarity to the request embedding. It only runs when the request carries
// an embedding; candidates below threshold are dropped.
func SemanticStage(threshold float64, limit int) Stage {
	if limit <= 0 {
		limit = 3
	}
	return Stage{
		Name: "semantic",
		Run: func(req Request, eligible []*pattern.CommandPattern) []Match {
			if len(req.Embedding) == 0 {
				return nil
			}

			var hits []Match
			for _, p := range eligible {
				if !p.HasEmbedding() {
					continue
				}
				sim := vector.Cosine(req.Embedding, p.PatternEmbedding)
				if sim < threshold {
					continue
				}
				hits = append(hits, Match{Pattern: p, MatchType: MatchSemantic, Confidence: sim})
			}

			sort.SliceStable(hits, func(i, j int) bool {
				if hits[i].Confidence != hits[j].Confidence {
					return hits[i].Confidence > hits[j].Confidence
				}
				return hits[i].Pattern.Priority < hits[j].Pattern.Priority
			})
			if len(hits) > limit {
				hits = hits[:limit]
			}
			return hits
		},
	}
}
