package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "auth service", Normalize("  Auth   Service "))
	assert.Equal(t, "kubernetes", Normalize("Kubernetes"))
	assert.Equal(t, "", Normalize("   "))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.Equal(t, 0.0, Similarity("abc", ""))
	assert.Equal(t, 1.0, Similarity("", ""))

	// difflib reference: ratio("abcd", "bcde") = 0.75
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
	assert.Greater(t, Similarity("postgresql", "postgresq"), 0.9)
	assert.Less(t, Similarity("redis", "falkordb"), 0.5)
}

func knownTools() []Known {
	return []Known{
		{Name: "kubernetes", EntityType: "tool"},
		{Name: "postgresql", EntityType: "tool"},
		{Name: "redis", EntityType: "tool"},
	}
}

func TestResolve_ExactMatchMerges(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("Auth Service", "service", []Known{{Name: "auth service", EntityType: "service"}})
	assert.Equal(t, ActionMerge, res.Action)
	assert.Equal(t, "auth service", res.CanonicalName)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestResolve_ExactMatchAcrossTypesLinksSameAs(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("mercury", "project", []Known{{Name: "mercury", EntityType: "tool"}})
	assert.Equal(t, ActionSameAs, res.Action)
	assert.Equal(t, "mercury", res.CanonicalName)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestResolve_AliasMatchMerges(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("k8s", "tool", knownTools())
	assert.Equal(t, ActionMerge, res.Action)
	assert.Equal(t, "kubernetes", res.CanonicalName)
}

func TestResolve_AliasWithoutKnownCanonicalFallsThrough(t *testing.T) {
	r := NewResolver()
	// "k8s" aliases to "kubernetes", but kubernetes is not a known
	// entity and nothing is fuzzy-close enough.
	res := r.Resolve("k8s", "tool", []Known{{Name: "redis", EntityType: "tool"}})
	assert.Equal(t, ActionCreate, res.Action)
	assert.Equal(t, "k8s", res.CanonicalName)
}

func TestResolve_FuzzyMatchNeverMerges(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("kuberntes", "tool", knownTools())
	require.Equal(t, ActionSameAs, res.Action)
	assert.Equal(t, "kubernetes", res.CanonicalName)
	assert.GreaterOrEqual(t, res.Confidence, SimilarityThreshold)
	assert.NotEqual(t, ActionMerge, res.Action)
}

func TestResolve_FuzzyMatchAcrossTypesIsRelated(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("postgresq", "service", []Known{{Name: "postgresql", EntityType: "tool"}})
	assert.Equal(t, ActionRelatedTo, res.Action)
	assert.Equal(t, "postgresql", res.CanonicalName)
	assert.GreaterOrEqual(t, res.Confidence, SimilarityThreshold)
}

func TestResolve_BelowThresholdCreates(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("completely different", "tool", knownTools())
	assert.Equal(t, ActionCreate, res.Action)
	assert.Equal(t, "completely different", res.CanonicalName)
}

func TestResolve_EmptyMention(t *testing.T) {
	r := NewResolver()
	res := r.Resolve("  ", "tool", knownTools())
	assert.Equal(t, ActionCreate, res.Action)
	assert.Equal(t, "", res.CanonicalName)
}
