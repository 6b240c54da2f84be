package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatherly/nudge-engine/internal/api/respond"
	"github.com/gatherly/nudge-engine/internal/cache"
	"github.com/gatherly/nudge-engine/internal/nudge"
)

const lastRunKey = "nudges:last_run"

// RunNudges triggers one periodic batch. Overlapping invocations are safe:
// the eligibility gate absorbs duplicate attempts.
// @Summary Run the periodic nudge batch
// @Description Runs the inactivity, low-fill, and regulars detectors and returns per-signal counts.
// @Tags nudges
// @Produce json
// @Success 200 {object} nudge.RunResult
// @Router /nudges/run [post]
func (h *Handler) RunNudges(w http.ResponseWriter, r *http.Request) {
	result := h.engine.ProcessPeriodicNudges(r.Context())

	if data, err := json.Marshal(result); err == nil {
		h.cache.Set(lastRunKey, data, cache.TTLLastRun)
	}

	respond.WriteJSONObject(w, http.StatusOK, result)
}

// EventApproved runs the event-recommendation detector for one approved
// event. Invoked by the marketplace's approval pathway.
// @Summary Process an approved event
// @Description Nudges past attendees of the organizer toward the newly approved event.
// @Tags nudges
// @Produce json
// @Param eventID path string true "Approved event id"
// @Success 200 {object} nudge.SignalStats
// @Failure 404 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /events/{eventID}/approved [post]
func (h *Handler) EventApproved(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_EVENT_ID", "event id is required")
		return
	}

	stats, err := h.engine.ProcessApprovedEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, nudge.ErrEventNotFound) {
			respond.WriteError(w, http.StatusNotFound, "EVENT_NOT_FOUND", "no approved event with that id")
			return
		}
		h.logger.Error("approved event processing failed", "event_id", eventID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "PROCESSING_FAILED", "could not process event")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, stats)
}

// NudgeStatus returns the last periodic run's result.
// @Summary Last run status
// @Description Returns the most recent periodic run summary, with ETag support.
// @Tags nudges
// @Produce json
// @Success 200 {object} nudge.RunResult
// @Success 304 "Not Modified"
// @Failure 404 {object} respond.ErrorResponse
// @Router /nudges/status [get]
func (h *Handler) NudgeStatus(w http.ResponseWriter, r *http.Request) {
	data, etag, ok := h.cache.Get(lastRunKey)
	if !ok {
		respond.WriteError(w, http.StatusNotFound, "NO_RUNS", "no periodic run recorded yet")
		return
	}
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLLastRun, true)
}
