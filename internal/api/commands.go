package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid/voltgrid-core/internal/audit"
	"github.com/voltgrid/voltgrid-core/internal/lifecycle"
)

// commandRequest is the optional JSON body for lifecycle commands.
// Only charge and discharge read PowerW; other commands take no body.
type commandRequest struct {
	PowerW float64 `json:"power_w"`
}

// routeCommands maps the {command} route parameter onto lifecycle commands.
var routeCommands = map[string]lifecycle.Command{
	"start":        lifecycle.CommandStart,
	"stop":         lifecycle.CommandStop,
	"hot-standby":  lifecycle.CommandHotStandby,
	"cold-standby": lifecycle.CommandColdStandby,
	"charge":       lifecycle.CommandCharge,
	"discharge":    lifecycle.CommandDischarge,
	"error-ack":    lifecycle.CommandErrorAck,
}

// handleCommand executes a lifecycle command against a component.
//
// POST /api/v1/components/{id}/commands/{command}
//
// The response reports the per-step outcomes and the final observed state.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := componentIDParam(w, r)
	if !ok {
		return
	}

	cmd, ok := routeCommands[chi.URLParam(r, "command")]
	if !ok {
		writeNotFound(w, "unknown command: "+chi.URLParam(r, "command"))
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	result, err := s.orchestrator.Execute(r.Context(), id, cmd, req.PowerW)
	s.recordCommand(r.Context(), id, cmd, req.PowerW, result, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// recordCommand appends one command log entry. Logging failures must not
// fail the command itself, so errors are only logged.
func (s *Server) recordCommand(ctx context.Context, id int64, cmd lifecycle.Command, powerW float64, result *lifecycle.Result, execErr error) {
	if s.audit == nil {
		return
	}

	entry := &audit.Entry{
		ComponentID: id,
		Command:     string(cmd),
		Status:      audit.StatusOK,
	}
	if powerW != 0 {
		entry.Detail = map[string]any{"power_w": powerW}
	}
	if execErr != nil {
		entry.Status = audit.StatusFailed
		if entry.Detail == nil {
			entry.Detail = map[string]any{}
		}
		entry.Detail["error"] = execErr.Error()
	} else if result != nil {
		if entry.Detail == nil {
			entry.Detail = map[string]any{}
		}
		entry.Detail["command_id"] = result.CommandID
	}

	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record command log entry",
			"component_id", id,
			"command", cmd,
			"error", err,
		)
	}
}

// handleCommandLog lists past lifecycle commands, most recent first.
//
// GET /api/v1/commands/log?component_id=3&command=charge&status=failed&limit=50&offset=0
func (s *Server) handleCommandLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "command log not configured")
		return
	}

	filter := audit.Filter{
		Command: r.URL.Query().Get("command"),
		Status:  r.URL.Query().Get("status"),
	}

	if raw := r.URL.Query().Get("component_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "invalid component_id: "+raw)
			return
		}
		filter.ComponentID = id
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid limit: "+raw)
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "invalid offset: "+raw)
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command log", "error", err)
		writeInternalError(w, "failed to list command log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
