package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-react/internal/audit"
	"github.com/nerrad567/gray-logic-react/internal/state"
)

// StateRequest sets an entity's state.
type StateRequest struct {
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// handleListStates returns every known entity.
func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	entities := s.rt.States().List()
	writeJSON(w, http.StatusOK, map[string]any{"states": entities, "count": len(entities)})
}

// handleSetState updates an entity. Templates and state waits watching
// the entity re-evaluate on the event loop before the response is sent.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "entity")
	if len(id) > maxQueryParamLen {
		writeBadRequest(w, "entity id exceeds maximum length")
		return
	}

	var req StateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.State == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "state is required")
		return
	}

	var (
		changed bool
		entity  state.Entity
	)
	if !s.onLoop(w, r, func() {
		changed = s.rt.States().Set(id, req.State, req.Attributes)
		entity, _ = s.rt.States().Get(id)
	}) {
		return
	}
	s.auditLog(audit.ActionSetState, audit.TargetEntity, id, map[string]any{"state": req.State, "changed": changed})
	writeJSON(w, http.StatusOK, map[string]any{"entity": entity, "changed": changed})
}
