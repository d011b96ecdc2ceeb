package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-react/internal/audit"
	"github.com/nerrad567/gray-logic-react/internal/engine"
)

// ActionRequest injects an action event as if it arrived over MQTT.
type ActionRequest struct {
	Entity  string         `json:"entity" validate:"required"`
	Type    string         `json:"type" validate:"required"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data"`
	Context string         `json:"context"`
}

// TriggerRequest is the optional event a manual trigger runs with.
type TriggerRequest struct {
	Entity  string         `json:"entity"`
	Type    string         `json:"type"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data"`
	Context string         `json:"context"`
}

// handleListWorkflows returns every loaded workflow with its live run counts.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	var workflows []engine.WorkflowInfo
	if !s.onLoop(w, r, func() { workflows = s.rt.Workflows() }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": workflows, "count": len(workflows)})
}

// handleReload re-reads the workflows file. Invalid workflows are
// reported and left out; the valid ones replace every loaded workflow.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		writeUnavailable(w, "reload is not configured")
		return
	}

	res, err := s.reload(r.Context())
	if err != nil {
		s.logger.Error("workflow reload failed", "error", err)
		writeInternalError(w, "reload failed: "+err.Error())
		return
	}

	s.auditLog(audit.ActionReload, audit.TargetWorkflows, "", map[string]any{
		"loaded":  len(res.Workflows),
		"skipped": len(res.Errors),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded": len(res.Workflows),
		"errors": res.Errors,
	})
}

// handleAction runs an action event through every workflow's actors.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ev := engine.ActionEvent{
		Entity:  req.Entity,
		Type:    req.Type,
		Action:  req.Action,
		Data:    req.Data,
		Context: req.Context,
	}

	// Reactions may dispatch long after the request has ended.
	ctx := context.WithoutCancel(r.Context())

	var runs []engine.RunInfo
	if !s.onLoop(w, r, func() {
		for _, run := range s.rt.HandleAction(ctx, ev) {
			runs = append(runs, run.Info())
		}
	}) {
		return
	}

	s.auditLog(audit.ActionInject, audit.TargetEntity, req.Entity, map[string]any{
		"type":   req.Type,
		"action": req.Action,
		"runs":   len(runs),
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"runs": runs, "count": len(runs)})
}

// handleTrigger starts a run of one workflow regardless of its actors.
// The body is optional; without one the run sees an empty event.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	ev := engine.ActionEvent{
		Entity:  req.Entity,
		Type:    req.Type,
		Action:  req.Action,
		Data:    req.Data,
		Context: req.Context,
	}
	ctx := context.WithoutCancel(r.Context())

	var (
		run *engine.RunInfo
		err error
	)
	if !s.onLoop(w, r, func() {
		var started *engine.WorkflowRun
		if started, err = s.rt.Trigger(ctx, id, ev); started != nil {
			info := started.Info()
			run = &info
		}
	}) {
		return
	}
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.auditLog(audit.ActionTrigger, audit.TargetWorkflow, id, map[string]any{
		"started": run != nil,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": id, "run": run, "started": run != nil})
}
