package component

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the narrow logging interface used by the registry.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// snapshot is one immutable generation of the topology. Readers always see
// a complete, internally consistent table; Reload swaps the whole snapshot
// atomically so no partial mutation is ever visible.
type snapshot struct {
	components  []Component // insertion order
	index       map[int64]int
	connections []Connection // insertion order
}

// Registry provides read access to the component and connection tables.
//
// The tables are populated once at startup via Reload() and are immutable
// between reloads. All public methods are thread-safe.
type Registry struct {
	repo   Repository
	snap   *snapshot
	snapMu sync.RWMutex
	logger Logger
}

// NewRegistry creates a component registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		snap:   &snapshot{index: make(map[int64]int)},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Reload loads the component and connection tables from the repository and
// replaces the current snapshot atomically. Connection endpoints are
// validated against the loaded component table; a dangling endpoint fails
// the whole reload and leaves the previous snapshot in place.
func (r *Registry) Reload(ctx context.Context) error {
	components, err := r.repo.ListComponents(ctx)
	if err != nil {
		return fmt.Errorf("loading components: %w", err)
	}

	connections, err := r.repo.ListConnections(ctx)
	if err != nil {
		return fmt.Errorf("loading connections: %w", err)
	}

	snap, err := buildSnapshot(components, connections)
	if err != nil {
		return err
	}

	r.snapMu.Lock()
	r.snap = snap
	r.snapMu.Unlock()

	r.logger.Info("topology loaded",
		"components", len(snap.components),
		"connections", len(snap.connections),
	)
	return nil
}

// buildSnapshot validates the loaded tables and builds the lookup index.
func buildSnapshot(components []Component, connections []Connection) (*snapshot, error) {
	index := make(map[int64]int, len(components))
	for i, c := range components {
		if c.ID <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidID, c.ID)
		}
		if !c.Category.IsValid() {
			return nil, fmt.Errorf("%w: %q (component %d)", ErrInvalidCategory, c.Category, c.ID)
		}
		if _, exists := index[c.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, c.ID)
		}
		index[c.ID] = i
	}

	for _, conn := range connections {
		if _, ok := index[conn.Start]; !ok {
			return nil, fmt.Errorf("%w: start %d", ErrUnknownEndpoint, conn.Start)
		}
		if _, ok := index[conn.End]; !ok {
			return nil, fmt.Errorf("%w: end %d", ErrUnknownEndpoint, conn.End)
		}
	}

	return &snapshot{
		components:  components,
		index:       index,
		connections: connections,
	}, nil
}

// current returns the active snapshot.
func (r *Registry) current() *snapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snap
}

// Get retrieves a component by ID.
// Returns ErrNotFound if the component does not exist.
func (r *Registry) Get(id int64) (Component, error) {
	snap := r.current()
	i, ok := snap.index[id]
	if !ok {
		return Component{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return snap.components[i], nil
}

// List returns all components in insertion order.
// The returned slice is a copy; callers can safely modify it.
func (r *Registry) List() []Component {
	snap := r.current()
	out := make([]Component, len(snap.components))
	copy(out, snap.components)
	return out
}

// ListConnections returns all connections in insertion order.
// The returned slice is a copy; callers can safely modify it.
func (r *Registry) ListConnections() []Connection {
	snap := r.current()
	out := make([]Connection, len(snap.connections))
	copy(out, snap.connections)
	return out
}

// Count returns the number of components in the current snapshot.
func (r *Registry) Count() int {
	return len(r.current().components)
}
