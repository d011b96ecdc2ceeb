package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-react/internal/trace"
)

const (
	defaultTraceLimit = 20
	maxTraceLimit     = 500
)

// handleGetTrace returns a run's trace: live if the run is still active,
// otherwise from the trace store.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	var live *trace.Trace
	if !s.onLoop(w, r, func() { live, _ = s.rt.Trace(runID) }) {
		return
	}
	if live != nil {
		writeJSON(w, http.StatusOK, live)
		return
	}

	if s.traces == nil {
		writeNotFound(w, "trace not found")
		return
	}
	tr, err := s.traces.Get(r.Context(), runID)
	if errors.Is(err, trace.ErrTraceNotFound) {
		writeNotFound(w, "trace not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load trace", "run_id", runID, "error", err)
		writeInternalError(w, "failed to load trace")
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// handleListTraces returns the newest stored traces of a workflow.
//
// Query parameters:
//   - workflow_id: required
//   - limit: maximum number of traces (default 20, max 500)
func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	workflowID := r.URL.Query().Get("workflow_id")
	if workflowID == "" {
		writeBadRequest(w, "workflow_id is required")
		return
	}
	if len(workflowID) > maxQueryParamLen {
		writeBadRequest(w, "workflow_id exceeds maximum length")
		return
	}

	limit := defaultTraceLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTraceLimit {
			writeBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	traces := []*trace.Trace{}
	if s.traces != nil {
		list, err := s.traces.ListByWorkflow(r.Context(), workflowID, limit)
		if err != nil {
			s.logger.Error("failed to list traces", "workflow_id", workflowID, "error", err)
			writeInternalError(w, "failed to list traces")
			return
		}
		traces = append(traces, list...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": traces, "count": len(traces)})
}
