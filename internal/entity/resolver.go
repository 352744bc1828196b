// Package entity resolves extracted entity mentions to canonical graph
// entities through three tiers: exact normalized match, a curated alias
// dictionary, and fuzzy string similarity.
package entity

import (
	"fmt"
	"strings"

	"github.com/moolen/atlas/internal/logging"
)

// SimilarityThreshold is the minimum fuzzy ratio for a mention to be
// linked to an existing entity. Fuzzy hits are only ever linked, never
// merged; below the threshold the mention becomes a new entity.
const SimilarityThreshold = 0.9

// defaultAliases maps common shorthand to canonical names. Keys and
// values are normalized forms.
var defaultAliases = map[string]string{
	"k8s":      "kubernetes",
	"pg":       "postgresql",
	"postgres": "postgresql",
	"js":       "javascript",
	"ts":       "typescript",
	"gh":       "github",
	"repo":     "repository",
	"db":       "database",
	"auth":     "authentication",
	"config":   "configuration",
	"env":      "environment",
	"ci":       "continuous integration",
	"cd":       "continuous deployment",
	"ml":       "machine learning",
}

// Action is the resolution outcome for an entity mention.
type Action string

const (
	// ActionMerge folds the mention into an existing entity.
	ActionMerge Action = "MERGE"
	// ActionSameAs keeps the mention as its own entity linked to the
	// canonical one by a SAME_AS edge.
	ActionSameAs Action = "SAME_AS"
	// ActionRelatedTo keeps the mention as its own entity with a
	// RELATED_TO edge to a near match of a different type.
	ActionRelatedTo Action = "RELATED_TO"
	// ActionCreate makes the mention a brand-new entity.
	ActionCreate Action = "CREATE"
)

// Known is an existing graph entity the resolver matches against.
type Known struct {
	Name       string
	EntityType string
}

// Resolution describes how a mention was resolved.
type Resolution struct {
	Action        Action
	CanonicalName string
	EntityType    string
	Confidence    float64
	Justification string
}

// Resolver matches mentions against a set of known canonical names.
type Resolver struct {
	aliases map[string]string
	logger  *logging.Logger
}

// NewResolver creates a resolver with the default alias dictionary.
func NewResolver() *Resolver {
	return &Resolver{
		aliases: defaultAliases,
		logger:  logging.GetLogger("entity"),
	}
}

// Normalize canonicalizes an entity name: lowercase, trimmed, inner
// whitespace collapsed to single spaces.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Resolve matches a mention against known entities in three tiers.
// Tier 1 (exact or alias hit) merges when the entity types agree and
// proposes SAME_AS when they differ. Tier 2 (fuzzy similarity at or
// above SimilarityThreshold) never merges: it proposes SAME_AS for a
// same-typed near match and RELATED_TO across types, carrying the
// similarity as confidence. Anything else creates a new entity.
func (r *Resolver) Resolve(mention, mentionType string, known []Known) Resolution {
	normalized := Normalize(mention)
	create := Resolution{
		Action:        ActionCreate,
		CanonicalName: normalized,
		EntityType:    mentionType,
		Confidence:    1.0,
		Justification: "no known entity matched",
	}
	if normalized == "" {
		return create
	}

	types := make(map[string]string, len(known))
	for _, k := range known {
		types[Normalize(k.Name)] = k.EntityType
	}

	if knownType, ok := types[normalized]; ok {
		return r.tierOne(normalized, mentionType, knownType, "exact name match")
	}
	if canonical, ok := r.aliases[normalized]; ok {
		if knownType, exists := types[canonical]; exists {
			return r.tierOne(canonical, mentionType, knownType, fmt.Sprintf("alias of %q", canonical))
		}
	}

	bestRatio := 0.0
	bestName := ""
	for name := range types {
		if ratio := Similarity(normalized, name); ratio >= SimilarityThreshold && ratio > bestRatio {
			bestRatio, bestName = ratio, name
		}
	}
	if bestName != "" {
		r.logger.Debug("Fuzzy match %q ~ %q (%.3f)", mention, bestName, bestRatio)
		if sameType(mentionType, types[bestName]) {
			return Resolution{
				Action:        ActionSameAs,
				CanonicalName: bestName,
				EntityType:    mentionType,
				Confidence:    bestRatio,
				Justification: fmt.Sprintf("fuzzy similarity %.3f to %q", bestRatio, bestName),
			}
		}
		return Resolution{
			Action:        ActionRelatedTo,
			CanonicalName: bestName,
			EntityType:    mentionType,
			Confidence:    bestRatio,
			Justification: fmt.Sprintf("fuzzy similarity %.3f to %q of type %q", bestRatio, bestName, types[bestName]),
		}
	}
	return create
}

func (r *Resolver) tierOne(canonical, mentionType, knownType, basis string) Resolution {
	if sameType(mentionType, knownType) {
		return Resolution{
			Action:        ActionMerge,
			CanonicalName: canonical,
			EntityType:    knownType,
			Confidence:    1.0,
			Justification: basis,
		}
	}
	return Resolution{
		Action:        ActionSameAs,
		CanonicalName: canonical,
		EntityType:    mentionType,
		Confidence:    0.9,
		Justification: fmt.Sprintf("%s but entity_type %q differs from %q", basis, mentionType, knownType),
	}
}

// sameType treats a missing type on either side as compatible.
func sameType(a, b string) bool {
	return a == "" || b == "" || a == b
}

// Similarity computes the Ratcliff-Obershelp ratio of two strings:
// twice the total length of recursively matched blocks divided by the
// combined length.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	matched := matchedLength(a, b)
	return 2.0 * float64(matched) / float64(len(a)+len(b))
}

// matchedLength sums the longest common substring and, recursively, the
// matches in the unmatched regions on either side of it.
func matchedLength(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedLength(a[:ai], b[:bi])
	total += matchedLength(a[ai+size:], b[bi+size:])
	return total
}

func longestCommonSubstring(a, b string) (ai, bi, size int) {
	// lengths[j] is the match length ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					ai = i - size
					bi = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}
