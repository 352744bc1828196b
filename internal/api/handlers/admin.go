package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	apierrors "github.com/moolen/atlas/internal/api/errors"
	"github.com/moolen/atlas/internal/api/response"
)

type reconsolidateRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// handleReconsolidate posts a consolidation trigger; the consolidation
// consumer runs the cycle asynchronously.
func (h *Handlers) handleReconsolidate(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		h.writeError(w, apierrors.NewInternalServerError("Consolidation trigger unavailable"))
		return
	}

	var req reconsolidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		h.writeError(w, apierrors.NewInvalidRequestError("Invalid JSON body: %v", err))
		return
	}

	if err := h.trigger.PostTrigger(r.Context(), req.SessionID); err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = response.WriteJSON(w, map[string]interface{}{
		"status":     "triggered",
		"session_id": req.SessionID,
	})
}

func (h *Handlers) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.graph.GetGraphStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	streamLength, err := h.store.StreamLength(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	_ = response.WriteSuccess(w, map[string]interface{}{
		"graph":         stats,
		"stream_length": streamLength,
	})
}

type pruneRequest struct {
	Tier   string `json:"tier"`
	DryRun *bool  `json:"dry_run,omitempty"`
}

// handleAdminPrune runs one forgetting tier on demand. Dry-run is the
// default; destructive pruning must be requested explicitly.
func (h *Handlers) handleAdminPrune(w http.ResponseWriter, r *http.Request) {
	if h.pruner == nil {
		h.writeError(w, apierrors.NewInternalServerError("Pruning unavailable"))
		return
	}

	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apierrors.NewInvalidRequestError("Invalid JSON body: %v", err))
		return
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	result, err := h.pruner.Prune(r.Context(), req.Tier, dryRun)
	if err != nil {
		h.writeError(w, apierrors.NewInvalidRequestError("%v", err))
		return
	}
	_ = response.WriteSuccess(w, result)
}

// handleHealth reports aggregate health from the ledger and graph pings:
// healthy, degraded (one down) or unhealthy (both down).
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, components := h.healthStatus(r)

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = response.WriteJSON(w, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}

func (h *Handlers) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	status, components := h.healthStatus(r)

	detail := map[string]interface{}{
		"status":     status,
		"components": components,
	}

	if components["graph"] == "up" {
		if stats, err := h.graph.GetGraphStats(r.Context()); err == nil {
			detail["graph_stats"] = stats
		}
	}
	if components["redis"] == "up" {
		if length, err := h.store.StreamLength(r.Context()); err == nil {
			detail["stream_length"] = length
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = response.WriteJSON(w, detail)
}

func (h *Handlers) healthStatus(r *http.Request) (string, map[string]string) {
	components := map[string]string{"redis": "up", "graph": "up"}
	down := 0

	if err := h.store.Ping(r.Context()); err != nil {
		components["redis"] = "down"
		down++
	}
	if err := h.graph.Ping(r.Context()); err != nil {
		components["graph"] = "down"
		down++
	}

	switch down {
	case 0:
		return "healthy", components
	case 1:
		return "degraded", components
	default:
		return "unhealthy", components
	}
}
