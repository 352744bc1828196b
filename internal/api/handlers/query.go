package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/moolen/atlas/internal/api/errors"
	"github.com/moolen/atlas/internal/api/response"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/metrics"
	"github.com/moolen/atlas/internal/models"
)

func (h *Handlers) handleContext(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	maxNodes := models.DefaultResultNodes
	for name, target := range map[string]*int{
		"max_nodes": &maxNodes,
		// max_depth is accepted for interface symmetry; session context
		// is always a depth-1 read.
		"max_depth": new(int),
	} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, apierrors.NewInvalidRequestError("Invalid %s: %v", name, err))
			return
		}
		*target = value
	}

	started := time.Now()
	result, err := h.query.SessionContext(r.Context(), sessionID, maxNodes, r.URL.Query().Get("query"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	metrics.QueryDuration.WithLabelValues("context").Observe(time.Since(started).Seconds())

	_ = response.WriteSuccess(w, result)
}

func (h *Handlers) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	var query models.SubgraphQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		h.writeError(w, apierrors.NewInvalidRequestError("Invalid JSON body: %v", err))
		return
	}
	if query.Query == "" && len(query.SeedNodes) == 0 && query.SessionID == "" {
		h.writeError(w, apierrors.NewInvalidRequestError("One of query, session_id or seed_nodes is required"))
		return
	}

	started := time.Now()
	result, err := h.query.Subgraph(r.Context(), &query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	metrics.QueryDuration.WithLabelValues("subgraph").Observe(time.Since(started).Seconds())

	_ = response.WriteSuccess(w, result)
}

func (h *Handlers) handleLineage(w http.ResponseWriter, r *http.Request) {
	query := models.LineageQuery{
		NodeID: r.PathValue("node_id"),
		Intent: r.URL.Query().Get("intent"),
	}

	for name, target := range map[string]*int{
		"max_depth": &query.MaxDepth,
		"max_nodes": &query.MaxNodes,
	} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, apierrors.NewInvalidRequestError("Invalid %s: %v", name, err))
			return
		}
		*target = value
	}

	started := time.Now()
	result, err := h.query.Lineage(r.Context(), &query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	metrics.QueryDuration.WithLabelValues("lineage").Observe(time.Since(started).Seconds())

	if len(result.Nodes) == 0 {
		h.writeError(w, apierrors.NewNotFoundError("Node %s not found", query.NodeID))
		return
	}
	_ = response.WriteSuccess(w, result)
}

// entityEventLimit bounds the referencing-event list on an entity read.
const entityEventLimit = 50

func (h *Handlers) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := r.PathValue("entity_id")

	result, err := h.graph.ExecuteQuery(r.Context(), graph.EntityWithEventsQuery(entityID, entityEventLimit))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(result.Rows) == 0 || len(result.Rows[0]) < 7 || graph.RowString(result.Rows[0][1]) == "" {
		h.writeError(w, apierrors.NewNotFoundError("Entity %s not found", entityID))
		return
	}

	row := result.Rows[0]
	_ = response.WriteSuccess(w, map[string]interface{}{
		"entity_id":     graph.RowString(row[0]),
		"name":          graph.RowString(row[1]),
		"entity_type":   graph.RowString(row[2]),
		"first_seen":    graph.RowInt64(row[3]),
		"last_seen":     graph.RowInt64(row[4]),
		"mention_count": graph.RowInt(row[5]),
		"event_ids":     graph.RowStrings(row[6]),
	})
}
