// Package handlers implements the /v1 HTTP API: ingestion, retrieval,
// entities, personalization, admin and health.
package handlers

import (
	"context"
	"net/http"

	apierrors "github.com/moolen/atlas/internal/api/errors"
	"github.com/moolen/atlas/internal/api/response"
	"github.com/moolen/atlas/internal/consolidation"
	"github.com/moolen/atlas/internal/graph"
	"github.com/moolen/atlas/internal/ledger"
	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/retrieval"
)

// TriggerPoster posts consolidation triggers to the global stream.
type TriggerPoster interface {
	PostTrigger(ctx context.Context, sessionID string) error
}

// Pruner runs on-demand forgetting passes.
type Pruner interface {
	Prune(ctx context.Context, tier string, dryRun bool) (*consolidation.PruneResult, error)
}

// Handlers carries the dependencies of the /v1 API.
type Handlers struct {
	store   *ledger.Store
	graph   graph.Client
	query   *retrieval.Service
	trigger TriggerPoster
	pruner  Pruner
	logger  *logging.Logger
}

// New creates the handler set. Trigger and pruner may be nil; the admin
// endpoints then report the operation as unavailable.
func New(store *ledger.Store, graphClient graph.Client, query *retrieval.Service,
	trigger TriggerPoster, pruner Pruner) *Handlers {
	return &Handlers{
		store:   store,
		graph:   graphClient,
		query:   query,
		trigger: trigger,
		pruner:  pruner,
		logger:  logging.GetLogger("api.handlers"),
	}
}

// Register wires every /v1 route onto the router.
func (h *Handlers) Register(router *http.ServeMux) {
	router.HandleFunc("POST /v1/events", h.handleIngest)
	router.HandleFunc("POST /v1/events/batch", h.handleIngestBatch)
	router.HandleFunc("GET /v1/events", h.handleSearchEvents)
	router.HandleFunc("GET /v1/events/{event_id}", h.handleGetEvent)

	router.HandleFunc("GET /v1/context/{session_id}", h.handleContext)
	router.HandleFunc("POST /v1/query/subgraph", h.handleSubgraph)
	router.HandleFunc("GET /v1/nodes/{node_id}/lineage", h.handleLineage)
	router.HandleFunc("GET /v1/entities/{entity_id}", h.handleGetEntity)

	router.HandleFunc("GET /v1/users/{user_id}/profile", h.handleUserProfile)
	router.HandleFunc("GET /v1/users/{user_id}/preferences", h.handleUserPreferences)
	router.HandleFunc("GET /v1/users/{user_id}/skills", h.handleUserSkills)
	router.HandleFunc("GET /v1/users/{user_id}/patterns", h.handleUserPatterns)
	router.HandleFunc("GET /v1/users/{user_id}/interests", h.handleUserInterests)
	router.HandleFunc("GET /v1/users/{user_id}/data-export", h.handleUserDataExport)
	router.HandleFunc("DELETE /v1/users/{user_id}", h.handleUserDelete)

	router.HandleFunc("POST /v1/admin/reconsolidate", h.handleReconsolidate)
	router.HandleFunc("GET /v1/admin/stats", h.handleAdminStats)
	router.HandleFunc("POST /v1/admin/prune", h.handleAdminPrune)
	router.HandleFunc("GET /v1/admin/health/detailed", h.handleHealthDetailed)

	router.HandleFunc("GET /v1/health", h.handleHealth)
}

// writeError renders an APIError, wrapping unknown errors as internal.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierrors.AsAPIError(err)
	if !ok {
		h.logger.Error("Request failed: %v", err)
		apiErr = apierrors.WrapError(err)
	}
	response.WriteAPIError(w, apiErr.HTTPStatus, string(apiErr.Code), apiErr.Message, apiErr.Details)
}
