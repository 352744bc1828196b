package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/moolen/atlas/internal/api/errors"
	"github.com/moolen/atlas/internal/api/response"
	"github.com/moolen/atlas/internal/metrics"
	"github.com/moolen/atlas/internal/models"
	"github.com/moolen/atlas/internal/validation"
)

// maxBatchSize bounds one batch ingestion request.
const maxBatchSize = 1000

type ingestResponse struct {
	EventID        string `json:"event_id"`
	GlobalPosition string `json:"global_position"`
}

type batchItemError struct {
	Index  int                     `json:"index"`
	Errors []validation.FieldError `json:"errors"`
}

type batchResponse struct {
	Ingested []ingestResponse `json:"ingested"`
	Errors   []batchItemError `json:"errors,omitempty"`
}

func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, apierrors.NewInvalidRequestError("Invalid JSON body: %v", err))
		return
	}

	result := validation.ValidateEvent(&event)
	if !result.IsValid() {
		metrics.EventsIngested.WithLabelValues("rejected").Inc()
		response.WriteValidationError(w, string(apierrors.ErrorCodeValidation),
			"Event failed validation", result.Errors)
		return
	}

	position, err := h.store.Append(r.Context(), &event)
	if err != nil {
		metrics.EventsIngested.WithLabelValues("error").Inc()
		h.writeError(w, err)
		return
	}

	metrics.EventsIngested.WithLabelValues("ok").Inc()
	_ = response.WriteCreated(w, ingestResponse{
		EventID:        event.EventID.String(),
		GlobalPosition: position,
	})
}

// handleIngestBatch validates every event, ingests the valid subset in
// input order, and reports per-index errors for the rest.
func (h *Handlers) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var events []*models.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		h.writeError(w, apierrors.NewInvalidRequestError("Invalid JSON body: %v", err))
		return
	}
	if len(events) == 0 {
		h.writeError(w, apierrors.NewInvalidRequestError("Batch must contain at least one event"))
		return
	}
	if len(events) > maxBatchSize {
		h.writeError(w, apierrors.NewInvalidRequestError("Batch exceeds %d events", maxBatchSize))
		return
	}

	resp := batchResponse{Ingested: []ingestResponse{}}
	var valid []*models.Event
	for i, event := range events {
		result := validation.ValidateEvent(event)
		if !result.IsValid() {
			metrics.EventsIngested.WithLabelValues("rejected").Inc()
			resp.Errors = append(resp.Errors, batchItemError{Index: i, Errors: result.Errors})
			continue
		}
		valid = append(valid, event)
	}

	positions, err := h.store.AppendBatch(r.Context(), valid)
	// A partial append still reports the events that made it in.
	for i, position := range positions {
		metrics.EventsIngested.WithLabelValues("ok").Inc()
		resp.Ingested = append(resp.Ingested, ingestResponse{
			EventID:        valid[i].EventID.String(),
			GlobalPosition: position,
		})
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	_ = response.WriteCreated(w, resp)
}

func (h *Handlers) handleSearchEvents(w http.ResponseWriter, r *http.Request) {
	query, err := parseEventQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	events, err := h.store.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, err)
		return
	}

	_ = response.WriteSuccess(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handlers) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event_id")

	event, err := h.store.GetByID(r.Context(), eventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if event == nil {
		h.writeError(w, apierrors.NewNotFoundError("Event %s not found", eventID))
		return
	}
	_ = response.WriteSuccess(w, event)
}

func parseEventQuery(r *http.Request) (*models.EventQuery, error) {
	params := r.URL.Query()
	query := &models.EventQuery{
		SessionID: params.Get("session_id"),
		AgentID:   params.Get("agent_id"),
		TraceID:   params.Get("trace_id"),
		EventType: params.Get("event_type"),
		ToolName:  params.Get("tool_name"),
	}

	for name, target := range map[string]**time.Time{"after": &query.After, "before": &query.Before} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, apierrors.NewInvalidRequestError("Invalid %s timestamp: %v", name, err)
		}
		*target = &ts
	}

	for name, target := range map[string]*int{"limit": &query.Limit, "offset": &query.Offset} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apierrors.NewInvalidRequestError("Invalid %s: %v", name, err)
		}
		*target = value
	}

	return query, nil
}
