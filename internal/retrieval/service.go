// Package retrieval assembles intent-aware context from the graph: it
// classifies the query, selects seed nodes, expands a weighted
// neighborhood, scores the candidates and returns a ranked envelope
// with full provenance.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moolen/atlas/internal/config"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/intent"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/models"
	"github.com/moolen/atlas/internal/scoring"
)

// seedLimit bounds how many seed nodes a strategy may produce before
// expansion.
const seedLimit = 10

// edgeWeightFloor excludes edge types the intent barely cares about
// from the traversal.
const edgeWeightFloor = 1.5

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"what": {}, "when": {}, "why": {}, "how": {}, "who": {}, "did": {},
	"was": {}, "were": {}, "are": {}, "is": {}, "about": {}, "happened": {},
	"related": {}, "regarding": {}, "does": {}, "into": {}, "from": {},
}

// Service answers context, lineage and session queries.
type Service struct {
	client graph.Client

	// mu guards decay and weights, which can be swapped at runtime by
	// a config reload. Queries in flight keep the values they read.
	mu      sync.RWMutex
	decay   config.DecayConfig
	weights scoring.Weights

	logger *logging.Logger
	now    func() time.Time
}

// NewService creates a retrieval service.
func NewService(client graph.Client, decay config.DecayConfig) *Service {
	return &Service{
		client:  client,
		decay:   decay,
		weights: weightsFromDecay(decay),
		logger:  logging.GetLogger("retrieval"),
		now:     time.Now,
	}
}

func weightsFromDecay(decay config.DecayConfig) scoring.Weights {
	return scoring.Weights{
		Decay:        decay.WeightRecency,
		Relevance:    decay.WeightRelevance,
		Importance:   decay.WeightImportance,
		UserAffinity: decay.WeightUserAffinity,
	}
}

// UpdateDecay replaces the scoring parameters without a restart.
func (s *Service) UpdateDecay(decay config.DecayConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decay = decay
	s.weights = weightsFromDecay(decay)
	s.logger.Info("Scoring parameters updated: stability_base=%.1fh stability_boost=%.1fh",
		decay.StabilityBaseHours, decay.StabilityBoostHours)
}

func (s *Service) scoringParams() (config.DecayConfig, scoring.Weights) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decay, s.weights
}

func (s *Service) currentWeights() scoring.Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}

// Subgraph runs an intent-aware retrieval and returns the ranked
// context envelope.
func (s *Service) Subgraph(ctx context.Context, q *models.SubgraphQuery) (*models.AtlasResponse, error) {
	q.Normalize()
	started := s.now()

	intents, override := s.resolveIntents(q)
	strategy := intent.SelectSeedStrategy(intents)

	seeds, err := s.selectSeeds(ctx, q, strategy)
	if err != nil {
		return nil, err
	}

	records := make(map[string]*eventRecord, len(seeds))
	seedIDs := make([]string, 0, len(seeds))
	for _, rec := range seeds {
		records[rec.EventID] = rec
		seedIDs = append(seedIDs, rec.EventID)
	}

	edgeWeights := intent.EdgeWeights(intents)
	if len(seedIDs) > 0 {
		neighborhood := graph.NeighborhoodQuery(seedIDs, traversalEdgeTypes(edgeWeights), q.MaxDepth, q.MaxNodes)
		neighborhood.Timeout = q.TimeoutMs
		result, err := s.client.ExecuteQuery(ctx, neighborhood)
		if err != nil {
			return nil, fmt.Errorf("expanding neighborhood: %w", err)
		}
		for _, rec := range parseEventRows(result) {
			if _, ok := records[rec.EventID]; ok {
				continue
			}
			rec.Proactive = true
			if len(rec.EdgeTypes) > 0 {
				// The last hop is the edge that reached the neighbor.
				rec.IncomingEdge = rec.EdgeTypes[len(rec.EdgeTypes)-1]
				rec.BoostWeight = edgeWeights[models.EdgeType(rec.IncomingEdge)]
			}
			records[rec.EventID] = rec
		}
	}

	inDegrees, err := s.fetchInDegrees(ctx, records)
	if err != nil {
		return nil, err
	}

	ranked := s.rank(records, inDegrees)
	truncated := len(ranked) > q.MaxNodes
	if truncated {
		ranked = ranked[:q.MaxNodes]
	}

	response := models.NewAtlasResponse()
	seedReason := fmt.Sprintf("intent %s via %s seeds", intent.Dominant(intents), strategy)
	returnedIDs := make([]string, 0, len(ranked))
	proactiveCount := 0
	for _, sc := range ranked {
		node := toAtlasNode(sc.record, sc.scores, seedReason)
		if sc.record.Proactive {
			node.RetrievalReason = "proactive"
			node.ProactiveSignal = proactiveSignal(sc.record.IncomingEdge)
			proactiveCount++
		}
		response.Nodes[sc.record.EventID] = node
		returnedIDs = append(returnedIDs, sc.record.EventID)
	}

	if err := s.attachEdges(ctx, response, returnedIDs); err != nil {
		return nil, err
	}
	s.bumpAccess(ctx, returnedIDs)

	response.Pagination.HasMore = truncated
	response.Meta = models.QueryMeta{
		QueryMs:         s.now().Sub(started).Milliseconds(),
		NodesReturned:   len(returnedIDs),
		Truncated:       truncated,
		InferredIntents: intentsToMeta(intents),
		IntentOverride:  override,
		SeedNodes:       seedIDs,
		ProactiveNodes:  proactiveCount,
		ScoringWeights:  weightsMap(s.currentWeights()),
		Capacity: &models.QueryCapacity{
			MaxNodes:  q.MaxNodes,
			UsedNodes: len(returnedIDs),
			MaxDepth:  q.MaxDepth,
		},
	}
	return response, nil
}

// Lineage walks the causal chain backward from a node.
func (s *Service) Lineage(ctx context.Context, q *models.LineageQuery) (*models.AtlasResponse, error) {
	q.Normalize()
	started := s.now()

	result, err := s.client.ExecuteQuery(ctx, graph.LineageQuery(q.NodeID, q.MaxDepth))
	if err != nil {
		return nil, fmt.Errorf("walking lineage of %s: %w", q.NodeID, err)
	}

	records := parseEventRows(result)
	truncated := len(records) > q.MaxNodes
	if truncated {
		records = records[:q.MaxNodes]
	}

	response := models.NewAtlasResponse()
	returnedIDs := make([]string, 0, len(records)+1)

	// The origin node anchors the chain.
	if origin, err := s.fetchEvent(ctx, q.NodeID); err != nil {
		return nil, err
	} else if origin != nil {
		scores := s.scoreRecord(origin, 0)
		response.Nodes[origin.EventID] = toAtlasNode(origin, scores, "lineage origin")
		returnedIDs = append(returnedIDs, origin.EventID)
	}

	for _, rec := range records {
		scores := s.scoreRecord(rec, 0)
		reason := fmt.Sprintf("causal ancestor at depth %d", rec.Depth)
		response.Nodes[rec.EventID] = toAtlasNode(rec, scores, reason)
		returnedIDs = append(returnedIDs, rec.EventID)
	}

	if err := s.attachEdges(ctx, response, returnedIDs); err != nil {
		return nil, err
	}
	s.bumpAccess(ctx, returnedIDs)

	response.Pagination.HasMore = truncated
	response.Meta = models.QueryMeta{
		QueryMs:       s.now().Sub(started).Milliseconds(),
		NodesReturned: len(returnedIDs),
		Truncated:     truncated,
		SeedNodes:     []string{q.NodeID},
		Capacity: &models.QueryCapacity{
			MaxNodes:  q.MaxNodes,
			UsedNodes: len(returnedIDs),
			MaxDepth:  q.MaxDepth,
		},
	}
	return response, nil
}

// SessionContext returns the scored recent context of one session. The
// optional query text has no embedding to match against, so relevance
// stays neutral regardless of its content.
func (s *Service) SessionContext(ctx context.Context, sessionID string, maxNodes int, query string) (*models.AtlasResponse, error) {
	if maxNodes <= 0 || maxNodes > models.MaxResultNodes {
		maxNodes = models.DefaultResultNodes
	}
	started := s.now()

	result, err := s.client.ExecuteQuery(ctx, graph.SessionEventsQuery(sessionID, maxNodes))
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	records := make(map[string]*eventRecord)
	for _, rec := range parseEventRows(result) {
		records[rec.EventID] = rec
	}
	// The read is capped at maxNodes, so filling the cap means the
	// session may hold more.
	truncated := len(records) >= maxNodes

	inDegrees, err := s.fetchInDegrees(ctx, records)
	if err != nil {
		return nil, err
	}

	response := models.NewAtlasResponse()
	returnedIDs := make([]string, 0, len(records))
	for _, sc := range s.rank(records, inDegrees) {
		response.Nodes[sc.record.EventID] = toAtlasNode(sc.record, sc.scores, "recent session activity")
		returnedIDs = append(returnedIDs, sc.record.EventID)
	}

	if err := s.attachEdges(ctx, response, returnedIDs); err != nil {
		return nil, err
	}
	s.bumpAccess(ctx, returnedIDs)

	response.Pagination.HasMore = truncated
	response.Meta = models.QueryMeta{
		QueryMs:        s.now().Sub(started).Milliseconds(),
		NodesReturned:  len(returnedIDs),
		Truncated:      truncated,
		ScoringWeights: weightsMap(s.currentWeights()),
		Capacity: &models.QueryCapacity{
			MaxNodes:  maxNodes,
			UsedNodes: len(returnedIDs),
			MaxDepth:  1,
		},
	}
	return response, nil
}

func (s *Service) resolveIntents(q *models.SubgraphQuery) (map[intent.Type]float64, string) {
	if q.Intent != "" {
		return map[intent.Type]float64{intent.Type(q.Intent): 1.0}, q.Intent
	}
	return intent.Classify(q.Query), ""
}

// selectSeeds produces the traversal entry points for a strategy,
// falling back to recent session activity when the strategy yields
// nothing.
func (s *Service) selectSeeds(ctx context.Context, q *models.SubgraphQuery, strategy string) ([]*eventRecord, error) {
	if len(q.SeedNodes) > 0 {
		seeds := make([]*eventRecord, 0, len(q.SeedNodes))
		for _, id := range q.SeedNodes {
			rec, err := s.fetchEvent(ctx, id)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				seeds = append(seeds, rec)
			}
		}
		return seeds, nil
	}

	var seedQuery graph.GraphQuery
	switch strategy {
	case intent.StrategyCausalRoots:
		seedQuery = graph.CausalSeedQuery(q.SessionID, seedLimit)
	case intent.StrategyTemporalAnchors:
		window := ExtractTimeWindow(q.Query, s.now())
		if window == nil {
			w := TimeWindow{From: s.now().Add(-24 * time.Hour), To: s.now()}
			window = &w
		}
		seedQuery = graph.TemporalSeedQuery(window.From.UnixMilli(), window.To.UnixMilli(), seedLimit)
	case intent.StrategyEntityHubs:
		terms := queryTerms(q.Query)
		if len(terms) == 0 {
			seedQuery = graph.SessionEventsQuery(q.SessionID, seedLimit)
		} else {
			seedQuery = graph.EntitySeedQuery(terms, seedLimit)
		}
	case intent.StrategySimilarCluster:
		seedQuery = graph.SimilarClusterSeedQuery(q.SessionID, seedLimit)
	default:
		// workflow_pattern, user_profile and general all start from the
		// session's recent activity.
		seedQuery = graph.SessionEventsQuery(q.SessionID, seedLimit)
	}

	result, err := s.client.ExecuteQuery(ctx, seedQuery)
	if err != nil {
		return nil, fmt.Errorf("selecting %s seeds: %w", strategy, err)
	}
	seeds := parseEventRows(result)

	if len(seeds) == 0 && q.SessionID != "" {
		fallback, err := s.client.ExecuteQuery(ctx, graph.SessionEventsQuery(q.SessionID, seedLimit))
		if err != nil {
			return nil, fmt.Errorf("selecting fallback seeds: %w", err)
		}
		seeds = parseEventRows(fallback)
	}
	return seeds, nil
}

func (s *Service) fetchEvent(ctx context.Context, eventID string) (*eventRecord, error) {
	result, err := s.client.ExecuteQuery(ctx, graph.EventByIDQuery(eventID))
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	records := parseEventRows(result)
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (s *Service) fetchInDegrees(ctx context.Context, records map[string]*eventRecord) (map[string]int, error) {
	if len(records) == 0 {
		return map[string]int{}, nil
	}
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	result, err := s.client.ExecuteQuery(ctx, graph.EventInDegreeQuery(ids))
	if err != nil {
		return nil, fmt.Errorf("fetching in-degrees: %w", err)
	}
	degrees := make(map[string]int, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) >= 2 {
			degrees[graph.RowString(row[0])] = graph.RowInt(row[1])
		}
	}
	return degrees, nil
}

type scoredRecord struct {
	record    *eventRecord
	scores    models.NodeScores
	composite float64
}

// rank scores every candidate and orders them best-first, breaking ties
// by recency then ID for determinism.
func (s *Service) rank(records map[string]*eventRecord, inDegrees map[string]int) []scoredRecord {
	now := s.now()
	decayCfg, weights := s.scoringParams()
	ranked := make([]scoredRecord, 0, len(records))
	for _, rec := range records {
		decay := scoring.DecayScore(rec.OccurredAt, rec.LastAccessedAt, rec.AccessCount, now,
			decayCfg.StabilityBaseHours, decayCfg.StabilityBoostHours)
		if rec.BoostWeight > 0 {
			// Neighbors reached over a heavily weighted edge type rank
			// ahead of equally fresh ones reached over a weak edge.
			decay = math.Min(1.0, decay*(1+rec.BoostWeight*0.1))
		}
		importance := scoring.ImportanceScore(rec.ImportanceHint, rec.AccessCount, inDegrees[rec.EventID])
		relevance := scoring.NeutralRelevance

		composite := scoring.CompositeScore(decay, relevance, importance, nil, weights)
		ranked = append(ranked, scoredRecord{
			record: rec,
			scores: models.NodeScores{
				DecayScore:      scoring.Round6(decay),
				RelevanceScore:  scoring.Round6(relevance),
				ImportanceScore: scoring.ImportanceInt(rec.ImportanceHint, importance),
			},
			composite: composite,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].composite != ranked[j].composite {
			return ranked[i].composite > ranked[j].composite
		}
		if !ranked[i].record.OccurredAt.Equal(ranked[j].record.OccurredAt) {
			return ranked[i].record.OccurredAt.After(ranked[j].record.OccurredAt)
		}
		return ranked[i].record.EventID < ranked[j].record.EventID
	})
	return ranked
}

func (s *Service) scoreRecord(rec *eventRecord, inDegree int) models.NodeScores {
	now := s.now()
	decayCfg, _ := s.scoringParams()
	decay := scoring.DecayScore(rec.OccurredAt, rec.LastAccessedAt, rec.AccessCount, now,
		decayCfg.StabilityBaseHours, decayCfg.StabilityBoostHours)
	importance := scoring.ImportanceScore(rec.ImportanceHint, rec.AccessCount, inDegree)
	return models.NodeScores{
		DecayScore:      scoring.Round6(decay),
		RelevanceScore:  scoring.Round6(scoring.NeutralRelevance),
		ImportanceScore: scoring.ImportanceInt(rec.ImportanceHint, importance),
	}
}

func (s *Service) attachEdges(ctx context.Context, response *models.AtlasResponse, eventIDs []string) error {
	if len(eventIDs) < 2 {
		return nil
	}
	result, err := s.client.ExecuteQuery(ctx, graph.EdgesAmongQuery(eventIDs))
	if err != nil {
		return fmt.Errorf("fetching result edges: %w", err)
	}
	for _, row := range result.Rows {
		if len(row) < 3 {
			continue
		}
		response.Edges = append(response.Edges, models.AtlasEdge{
			Source:   graph.RowString(row[0]),
			Target:   graph.RowString(row[1]),
			EdgeType: graph.RowString(row[2]),
		})
	}
	return nil
}

// bumpAccess reinforces the returned memories. Failures are logged, not
// surfaced: retrieval already succeeded.
func (s *Service) bumpAccess(ctx context.Context, eventIDs []string) {
	if len(eventIDs) == 0 {
		return
	}
	if _, err := s.client.ExecuteQuery(ctx, graph.BumpAccessQuery(eventIDs, s.now().UnixMilli())); err != nil {
		s.logger.Warn("Failed to bump access counts: %v", err)
	}
}

// traversalEdgeTypes keeps the edge types the intent weights above the
// floor, ordered by weight so truncation drops the least relevant.
func traversalEdgeTypes(weights map[models.EdgeType]float64) []models.EdgeType {
	type weighted struct {
		edge   models.EdgeType
		weight float64
	}
	var kept []weighted
	for edge, weight := range weights {
		if weight >= edgeWeightFloor {
			kept = append(kept, weighted{edge, weight})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].weight != kept[j].weight {
			return kept[i].weight > kept[j].weight
		}
		return kept[i].edge < kept[j].edge
	})
	out := make([]models.EdgeType, len(kept))
	for i, w := range kept {
		out[i] = w.edge
	}
	return out
}

func queryTerms(query string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?\"'()[]{}:;")
		if len(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func intentsToMeta(intents map[intent.Type]float64) map[string]float64 {
	out := make(map[string]float64, len(intents))
	for it, confidence := range intents {
		out[string(it)] = confidence
	}
	return out
}
