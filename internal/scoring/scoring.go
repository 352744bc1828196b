// Package scoring implements the four-factor memory scoring model:
// Ebbinghaus decay, structural importance, embedding relevance, and user
// affinity, combined into a weighted composite used to rank retrieval
// results.
package scoring

import (
	"math"
	"time"
)

// Decay curve parameters. Stability grows with access count so frequently
// recalled memories fade slower.
const (
	DefaultStabilityBaseHours  = 168.0
	DefaultStabilityBoostHours = 24.0

	// NeutralRelevance is returned when no embedding comparison is possible.
	NeutralRelevance = 0.5

	DefaultImportanceBase = 0.5
)

// Weights holds the composite weighting per factor.
type Weights struct {
	Decay        float64
	Relevance    float64
	Importance   float64
	UserAffinity float64
}

// DefaultWeights mirrors the retrieval ranking defaults.
func DefaultWeights() Weights {
	return Weights{Decay: 1.0, Relevance: 1.0, Importance: 1.0, UserAffinity: 0.5}
}

// DecayScore computes the Ebbinghaus retention R = exp(-t/S) where t is
// hours since the memory was last reinforced (the later of occurred_at and
// last_accessed_at) and S = base + accessCount*boost.
func DecayScore(occurredAt time.Time, lastAccessedAt *time.Time, accessCount int, now time.Time, baseHours, boostHours float64) float64 {
	stability := baseHours + float64(accessCount)*boostHours
	if stability <= 0 {
		return 0.0
	}

	reference := occurredAt
	if lastAccessedAt != nil && lastAccessedAt.After(reference) {
		reference = *lastAccessedAt
	}

	hours := now.Sub(reference).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / stability)
}

// ImportanceScore combines the explicit hint with access-frequency and
// in-degree centrality boosts, capped at 1.0. A nil hint yields the 0.5
// neutral base.
func ImportanceScore(hint *int, accessCount, inDegree int) float64 {
	base := DefaultImportanceBase
	if hint != nil {
		base = float64(*hint) / 10.0
	}

	accessBoost := math.Min(0.2, math.Log1p(float64(accessCount))*0.05)
	degreeBoost := math.Min(0.2, math.Log1p(float64(inDegree))*0.05)

	return math.Min(1.0, base+accessBoost+degreeBoost)
}

// RelevanceScore is the cosine similarity between two embeddings clamped
// to [0, 1]. Empty, mismatched, or zero-norm vectors yield the neutral 0.5
// so nodes without embeddings neither win nor lose on relevance.
func RelevanceScore(queryEmbedding, nodeEmbedding []float64) float64 {
	if len(queryEmbedding) == 0 || len(nodeEmbedding) == 0 || len(queryEmbedding) != len(nodeEmbedding) {
		return NeutralRelevance
	}

	var dot, qNorm, nNorm float64
	for i := range queryEmbedding {
		dot += queryEmbedding[i] * nodeEmbedding[i]
		qNorm += queryEmbedding[i] * queryEmbedding[i]
		nNorm += nodeEmbedding[i] * nodeEmbedding[i]
	}
	if qNorm == 0 || nNorm == 0 {
		return NeutralRelevance
	}

	cosine := dot / (math.Sqrt(qNorm) * math.Sqrt(nNorm))
	return clamp01(cosine)
}

// UserAffinityScore blends graph proximity to the user, recurrence of the
// memory in the user's sessions, and interest overlap.
func UserAffinityScore(proximity, recurrence, overlap float64) float64 {
	return clamp01(0.4*proximity + 0.3*recurrence + 0.3*overlap)
}

// CompositeScore is the weighted mean of the available factors. The
// affinity factor drops out of both numerator and denominator when nil.
func CompositeScore(decay, relevance, importance float64, userAffinity *float64, w Weights) float64 {
	sum := w.Decay*decay + w.Relevance*relevance + w.Importance*importance
	total := w.Decay + w.Relevance + w.Importance
	if userAffinity != nil {
		sum += w.UserAffinity * *userAffinity
		total += w.UserAffinity
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// Round6 rounds to six decimal places, the precision scores are reported
// with.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// ImportanceInt converts the importance factor to the 1-10 integer scale,
// preferring the explicit hint.
func ImportanceInt(hint *int, importance float64) int {
	if hint != nil {
		return *hint
	}
	return int(math.Round(importance * 10))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
