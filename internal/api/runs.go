package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-react/internal/audit"
	"github.com/nerrad567/gray-logic-react/internal/engine"
	"github.com/nerrad567/gray-logic-react/internal/trace"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// handleListRuns returns live runs, optionally filtered by workflow_id.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	workflowID := r.URL.Query().Get("workflow_id")
	if len(workflowID) > maxQueryParamLen {
		writeBadRequest(w, "workflow_id exceeds maximum length")
		return
	}

	runs := []engine.RunInfo{}
	if !s.onLoop(w, r, func() {
		list := s.rt.Runs().All()
		if workflowID != "" {
			list = s.rt.Runs().ByWorkflow(workflowID)
		}
		for _, run := range list {
			runs = append(runs, run.Info())
		}
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleGetRun returns a live run with its trace so far.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		info  engine.RunInfo
		tr    *trace.Trace
		found bool
	)
	if !s.onLoop(w, r, func() {
		run, ok := s.rt.Runs().Get(id)
		if !ok {
			return
		}
		found = true
		info = run.Info()
		tr = run.Trace()
	}) {
		return
	}
	if !found {
		writeNotFound(w, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": info, "trace": tr})
}

// handleRunNow skips every remaining wait of a run.
func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := context.WithoutCancel(r.Context())

	var err error
	if !s.onLoop(w, r, func() { err = s.rt.RunNow(ctx, id) }) {
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.auditLog(audit.ActionRunNow, audit.TargetRun, id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "status": "resumed"})
}

// handleDeleteRun stops a run without dispatching its pending reactions.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var err error
	if !s.onLoop(w, r, func() { err = s.rt.DeleteRun(id) }) {
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.auditLog(audit.ActionDeleteRun, audit.TargetRun, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleListReactions returns live reactions, optionally filtered by run_id.
func (s *Server) handleListReactions(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if len(runID) > maxQueryParamLen {
		writeBadRequest(w, "run_id exceeds maximum length")
		return
	}

	reactions := []engine.ReactionInfo{}
	if !s.onLoop(w, r, func() {
		list := s.rt.Reactions().All()
		if runID != "" {
			list = s.rt.Reactions().ByRun(runID)
		}
		for _, re := range list {
			reactions = append(reactions, re.Info())
		}
	}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reactions": reactions, "count": len(reactions)})
}

// handleReactNow skips every remaining wait of one reaction.
func (s *Server) handleReactNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := context.WithoutCancel(r.Context())

	var err error
	if !s.onLoop(w, r, func() { err = s.rt.ReactNow(ctx, id) }) {
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.auditLog(audit.ActionReactNow, audit.TargetReaction, id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"reaction_id": id, "status": "resumed"})
}

// handleDeleteReaction stops one reaction.
func (s *Server) handleDeleteReaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var err error
	if !s.onLoop(w, r, func() { err = s.rt.DeleteReaction(id) }) {
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.auditLog(audit.ActionDeleteReaction, audit.TargetReaction, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps engine errors to HTTP responses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrRunNotFound):
		writeNotFound(w, "run not found")
	case errors.Is(err, engine.ErrReactionNotFound):
		writeNotFound(w, "reaction not found")
	case errors.Is(err, engine.ErrWorkflowNotFound):
		writeNotFound(w, "workflow not found")
	case errors.Is(err, engine.ErrInvalidResume):
		writeError(w, http.StatusConflict, ErrCodeBadRequest, "reaction is not waiting")
	default:
		s.logger.Error("engine command failed", "error", err)
		writeInternalError(w, err.Error())
	}
}
