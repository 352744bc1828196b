// Package intent classifies natural-language queries into retrieval
// intents and turns them into per-edge-type traversal weights and
// seed-node selection strategies.
package intent

import (
	"strings"

	"github.com/moolen/atlas/internal/models"
)

// Type is a retrieval intent.
type Type string

const (
	Why         Type = "why"
	When        Type = "when"
	What        Type = "what"
	Related     Type = "related"
	WhoIs       Type = "who_is"
	HowDoes     Type = "how_does"
	Personalize Type = "personalize"
	General     Type = "general"
)

// Seed-node selection strategies.
const (
	StrategyCausalRoots     = "causal_roots"
	StrategyTemporalAnchors = "temporal_anchors"
	StrategyEntityHubs      = "entity_hubs"
	StrategySimilarCluster  = "similar_cluster"
	StrategyWorkflowPattern = "workflow_pattern"
	StrategyUserProfile     = "user_profile"
	StrategyGeneral         = "general"
)

// Matching is case-insensitive substring search; the match count drives
// confidence.
var intentKeywords = map[Type][]string{
	Why:         {"why", "because", "caused", "reason", "root cause", "due to"},
	When:        {"when", "timeline", "before", "after", "sequence", "order", "time"},
	What:        {"what", "describe", "explain", "definition", "meaning"},
	Related:     {"similar", "related", "like", "compare", "associated"},
	WhoIs:       {"who", "person", "user", "team", "member", "author"},
	HowDoes:     {"how", "process", "method", "approach", "workflow", "steps"},
	Personalize: {"prefer", "favorite", "style", "personalize", "customize"},
}

var seedStrategies = map[Type]string{
	Why:         StrategyCausalRoots,
	When:        StrategyTemporalAnchors,
	What:        StrategyEntityHubs,
	WhoIs:       StrategyEntityHubs,
	Related:     StrategySimilarCluster,
	HowDoes:     StrategyWorkflowPattern,
	Personalize: StrategyUserProfile,
}

// Classify scores a query against the keyword table. Each intent earns
// 0.4 per keyword match capped at 1.0, then scores are normalized so the
// dominant intent has confidence 1.0. Queries matching nothing map to
// {general: 0.5}.
func Classify(query string) map[Type]float64 {
	lower := strings.ToLower(query)

	scores := make(map[Type]float64)
	for it, keywords := range intentKeywords {
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > 0 {
			score := float64(matches) * 0.4
			if score > 1.0 {
				score = 1.0
			}
			scores[it] = score
		}
	}

	if len(scores) == 0 {
		return map[Type]float64{General: 0.5}
	}

	maxScore := 0.0
	for _, v := range scores {
		if v > maxScore {
			maxScore = v
		}
	}
	for k, v := range scores {
		scores[k] = v / maxScore
	}
	return scores
}

// EdgeWeights accumulates each intent's weight-matrix row, scaled by its
// confidence, into a single per-edge-type weight map.
func EdgeWeights(intents map[Type]float64) map[models.EdgeType]float64 {
	weights := make(map[models.EdgeType]float64)
	for it, confidence := range intents {
		row, ok := weightMatrix[it]
		if !ok {
			continue
		}
		for edgeType, weight := range row {
			weights[edgeType] += confidence * weight
		}
	}
	return weights
}

// SelectSeedStrategy picks the strategy for the dominant intent; ties
// break deterministically by intent name.
func SelectSeedStrategy(intents map[Type]float64) string {
	if len(intents) == 0 {
		return StrategyGeneral
	}

	var dominant Type
	best := -1.0
	for it, confidence := range intents {
		if confidence > best || (confidence == best && it < dominant) {
			dominant = it
			best = confidence
		}
	}

	if strategy, ok := seedStrategies[dominant]; ok {
		return strategy
	}
	return StrategyGeneral
}

// Dominant returns the highest-confidence intent, with the same
// deterministic tie-break as SelectSeedStrategy.
func Dominant(intents map[Type]float64) Type {
	if len(intents) == 0 {
		return General
	}
	var dominant Type
	best := -1.0
	for it, confidence := range intents {
		if confidence > best || (confidence == best && it < dominant) {
			dominant = it
			best = confidence
		}
	}
	return dominant
}

// weightMatrix maps each intent to edge-type traversal weights. Higher
// weights pull the traversal toward edges answering that intent.
var weightMatrix = map[Type]map[models.EdgeType]float64{
	Why: {
		models.EdgeTypeCausedBy:   5.0,
		models.EdgeTypeFollows:    1.0,
		models.EdgeTypeSimilarTo:  1.5,
		models.EdgeTypeReferences: 2.0,
		models.EdgeTypeSummarizes: 1.0,
	},
	When: {
		models.EdgeTypeCausedBy:   1.0,
		models.EdgeTypeFollows:    5.0,
		models.EdgeTypeSimilarTo:  0.5,
		models.EdgeTypeReferences: 1.0,
		models.EdgeTypeSummarizes: 0.5,
	},
	What: {
		models.EdgeTypeCausedBy:   2.0,
		models.EdgeTypeFollows:    1.0,
		models.EdgeTypeSimilarTo:  2.0,
		models.EdgeTypeReferences: 5.0,
		models.EdgeTypeSummarizes: 2.0,
	},
	Related: {
		models.EdgeTypeCausedBy:   1.5,
		models.EdgeTypeFollows:    0.5,
		models.EdgeTypeSimilarTo:  5.0,
		models.EdgeTypeReferences: 2.0,
		models.EdgeTypeSummarizes: 1.5,
	},
	General: {
		models.EdgeTypeCausedBy:   2.0,
		models.EdgeTypeFollows:    2.0,
		models.EdgeTypeSimilarTo:  2.0,
		models.EdgeTypeReferences: 2.0,
		models.EdgeTypeSummarizes: 2.0,
	},
	WhoIs: {
		models.EdgeTypeCausedBy:        1.0,
		models.EdgeTypeFollows:         0.5,
		models.EdgeTypeSimilarTo:       1.0,
		models.EdgeTypeReferences:      3.0,
		models.EdgeTypeSummarizes:      1.0,
		models.EdgeTypeHasProfile:      5.0,
		models.EdgeTypeHasPreference:   5.0,
		models.EdgeTypeHasSkill:        5.0,
		models.EdgeTypeExhibitsPattern: 4.0,
		models.EdgeTypeInterestedIn:    4.0,
		models.EdgeTypeAbout:           3.0,
		models.EdgeTypeDerivedFrom:     2.0,
		models.EdgeTypeAbstractedFrom:  1.0,
		models.EdgeTypeParentSkill:     2.0,
		models.EdgeTypeSameAs:          4.0,
		models.EdgeTypeRelatedTo:       3.0,
	},
	HowDoes: {
		models.EdgeTypeCausedBy:        2.0,
		models.EdgeTypeFollows:         3.0,
		models.EdgeTypeSimilarTo:       1.0,
		models.EdgeTypeReferences:      2.0,
		models.EdgeTypeSummarizes:      1.0,
		models.EdgeTypeHasProfile:      1.0,
		models.EdgeTypeHasPreference:   2.0,
		models.EdgeTypeHasSkill:        3.0,
		models.EdgeTypeExhibitsPattern: 5.0,
		models.EdgeTypeInterestedIn:    2.0,
		models.EdgeTypeAbout:           1.0,
		models.EdgeTypeDerivedFrom:     1.0,
		models.EdgeTypeAbstractedFrom:  4.0,
		models.EdgeTypeParentSkill:     1.0,
		models.EdgeTypeSameAs:          1.0,
		models.EdgeTypeRelatedTo:       2.0,
	},
	Personalize: {
		models.EdgeTypeCausedBy:        1.0,
		models.EdgeTypeFollows:         0.5,
		models.EdgeTypeSimilarTo:       1.5,
		models.EdgeTypeReferences:      2.0,
		models.EdgeTypeSummarizes:      1.0,
		models.EdgeTypeHasProfile:      4.0,
		models.EdgeTypeHasPreference:   5.0,
		models.EdgeTypeHasSkill:        4.0,
		models.EdgeTypeExhibitsPattern: 3.0,
		models.EdgeTypeInterestedIn:    4.0,
		models.EdgeTypeAbout:           3.0,
		models.EdgeTypeDerivedFrom:     3.0,
		models.EdgeTypeAbstractedFrom:  1.0,
		models.EdgeTypeParentSkill:     2.0,
		models.EdgeTypeSameAs:          2.0,
		models.EdgeTypeRelatedTo:       2.0,
	},
}
