package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid/voltgrid-core/internal/component"
)

// handleListComponents returns registered components, optionally filtered.
//
// Query parameters (repeatable):
//   - id: component IDs to include
//   - category: categories to include
//
// An absent parameter means no constraint; within one parameter the
// values are ORed, across parameters a component must match both.
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	ids, err := parseIDParams(query["id"])
	if err != nil {
		writeBadRequest(w, "invalid id parameter: "+err.Error())
		return
	}

	var categories []component.Category
	for _, raw := range query["category"] {
		cat := component.Category(raw)
		if !cat.IsValid() {
			writeBadRequest(w, "unknown category: "+raw)
			return
		}
		categories = append(categories, cat)
	}

	components := s.registry.FilterComponents(ids, categories)
	writeJSON(w, http.StatusOK, map[string]any{
		"components": components,
		"count":      len(components),
	})
}

// handleGetComponent returns a single component by ID.
func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	id, ok := componentIDParam(w, r)
	if !ok {
		return
	}

	comp, err := s.registry.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// handleListConnections returns directed connections, optionally filtered
// by start and end component IDs (same OR/AND semantics as components).
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	starts, err := parseIDParams(query["start"])
	if err != nil {
		writeBadRequest(w, "invalid start parameter: "+err.Error())
		return
	}
	ends, err := parseIDParams(query["end"])
	if err != nil {
		writeBadRequest(w, "invalid end parameter: "+err.Error())
		return
	}

	connections := s.registry.FilterConnections(starts, ends)
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": connections,
		"count":       len(connections),
	})
}

// handleCanStream reports whether live telemetry is available for a
// component. This is a static capability check; it never touches the bus.
func (s *Server) handleCanStream(w http.ResponseWriter, r *http.Request) {
	id, ok := componentIDParam(w, r)
	if !ok {
		return
	}

	if _, err := s.registry.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"component_id": id,
		"can_stream":   s.adapter.CanStream(id),
	})
}

// componentIDParam parses the {id} route parameter, writing a 400 on
// malformed input.
func componentIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "component id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseIDParams parses repeated numeric query parameters.
func parseIDParams(raw []string) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
