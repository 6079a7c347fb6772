package bounds

import (
	"context"
	"errors"
	"fmt"

	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// Domain errors for the bounds package.
var (
	// ErrInvalidBounds is returned when lower exceeds upper.
	ErrInvalidBounds = errors.New("bounds: lower exceeds upper")

	// ErrUnsupportedMetric is returned when the target metric is unknown
	// or the component does not support bounds on it.
	ErrUnsupportedMetric = errors.New("bounds: unsupported metric")
)

// Request is one bound-update item: constrain a metric of a component to
// a closed interval.
type Request struct {
	ComponentID int64         `json:"component_id"`
	Metric      driver.Metric `json:"target_metric"`
	Bounds      driver.Bounds `json:"bounds"`
}

// ItemResult reports the outcome of one stream item. A non-nil Err is
// delivered out-of-band to the caller and does not terminate the stream.
type ItemResult struct {
	Request Request `json:"request"`
	Err     error   `json:"-"`
}

// Registry is the component lookup the handler needs.
type Registry interface {
	// Get retrieves a component by ID.
	// Returns component.ErrNotFound if the component does not exist.
	Get(id int64) (component.Component, error)
}

// Logger is the narrow logging interface used by the handler.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Handler validates and forwards bound updates to the driver adapter.
//
// Items from one stream are processed strictly in arrival order; items
// from different streams are independent.
type Handler struct {
	registry Registry
	adapter  driver.Adapter
	logger   Logger
}

// NewHandler creates a bounds handler.
func NewHandler(registry Registry, adapter driver.Adapter) *Handler {
	return &Handler{
		registry: registry,
		adapter:  adapter,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// Apply validates and forwards a single bound update.
//
// Errors: component.ErrNotFound, ErrUnsupportedMetric, ErrInvalidBounds,
// and adapter errors (driver.ErrTimeout, driver.ErrFailure).
func (h *Handler) Apply(ctx context.Context, req Request) error {
	if req.Bounds.Lower > req.Bounds.Upper {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidBounds, req.Bounds.Lower, req.Bounds.Upper)
	}

	if _, err := h.registry.Get(req.ComponentID); err != nil {
		return err
	}

	if req.Metric != driver.MetricActivePower {
		return fmt.Errorf("%w: %q", ErrUnsupportedMetric, req.Metric)
	}
	if !h.adapter.Supports(req.ComponentID, driver.FeatureBounds) {
		return fmt.Errorf("%w: component %d has no bounds support", ErrUnsupportedMetric, req.ComponentID)
	}

	bounds := req.Bounds
	_, err := h.adapter.Apply(ctx, req.ComponentID, driver.Action{
		Kind:   driver.ActionSetBounds,
		Metric: req.Metric,
		Bounds: &bounds,
	})
	return err
}

// Run consumes one logical caller stream of bound updates, applying each
// item in arrival order. A failing item is reported on the returned
// channel and processing continues with the next item; only stream close
// or context cancellation ends the loop.
//
// The result channel is closed when the input is exhausted or ctx is
// cancelled.
func (h *Handler) Run(ctx context.Context, in <-chan Request) <-chan ItemResult {
	out := make(chan ItemResult)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case req, ok := <-in:
				if !ok {
					return
				}
				err := h.Apply(ctx, req)
				if err != nil {
					h.logger.Warn("bound update failed",
						"component_id", req.ComponentID,
						"metric", req.Metric,
						"error", err,
					)
				}
				select {
				case out <- ItemResult{Request: req, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
