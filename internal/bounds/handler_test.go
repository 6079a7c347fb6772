package bounds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
)

type mockRegistry struct {
	components map[int64]component.Component
}

func (m *mockRegistry) Get(id int64) (component.Component, error) {
	c, ok := m.components[id]
	if !ok {
		return component.Component{}, component.ErrNotFound
	}
	return c, nil
}

type boundsCall struct {
	ComponentID int64
	Metric      driver.Metric
	Bounds      driver.Bounds
}

type mockAdapter struct {
	mu          sync.Mutex
	calls       []boundsCall
	noBounds    map[int64]bool
	applyErr    error
	applyErrFor int64
}

func (m *mockAdapter) ReadState(ctx context.Context, id int64) (driver.State, error) {
	return driver.State{}, nil
}

func (m *mockAdapter) Apply(ctx context.Context, id int64, action driver.Action) (driver.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil && id == m.applyErrFor {
		return driver.State{}, m.applyErr
	}
	call := boundsCall{ComponentID: id, Metric: action.Metric}
	if action.Bounds != nil {
		call.Bounds = *action.Bounds
	}
	m.calls = append(m.calls, call)
	return driver.State{}, nil
}

func (m *mockAdapter) Supports(id int64, feature driver.Feature) bool {
	return !m.noBounds[id]
}

func (m *mockAdapter) CanStream(id int64) bool {
	return true
}

func (m *mockAdapter) recorded() []boundsCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]boundsCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func testHandler() (*Handler, *mockAdapter) {
	registry := &mockRegistry{
		components: map[int64]component.Component{
			1: {ID: 1, Name: "Inverter A", Category: component.CategoryInverter},
			2: {ID: 2, Name: "Battery A", Category: component.CategoryBattery},
		},
	}
	adapter := &mockAdapter{noBounds: map[int64]bool{}}
	return NewHandler(registry, adapter), adapter
}

func TestApply(t *testing.T) {
	h, adapter := testHandler()

	err := h.Apply(context.Background(), Request{
		ComponentID: 1,
		Metric:      driver.MetricActivePower,
		Bounds:      driver.Bounds{Lower: -5000, Upper: 5000},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	calls := adapter.recorded()
	if len(calls) != 1 {
		t.Fatalf("adapter calls = %d, want 1", len(calls))
	}
	if calls[0].ComponentID != 1 || calls[0].Bounds.Lower != -5000 || calls[0].Bounds.Upper != 5000 {
		t.Errorf("adapter call = %+v", calls[0])
	}
}

func TestApplyValidation(t *testing.T) {
	h, _ := testHandler()

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "unknown component",
			req:     Request{ComponentID: 99, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 0, Upper: 1}},
			wantErr: component.ErrNotFound,
		},
		{
			name:    "lower exceeds upper",
			req:     Request{ComponentID: 1, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 100, Upper: -100}},
			wantErr: ErrInvalidBounds,
		},
		{
			name:    "unknown metric",
			req:     Request{ComponentID: 1, Metric: "reactive_power", Bounds: driver.Bounds{Lower: 0, Upper: 1}},
			wantErr: ErrUnsupportedMetric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Apply(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Apply() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyUnsupportedComponent(t *testing.T) {
	h, adapter := testHandler()
	adapter.noBounds[2] = true

	err := h.Apply(context.Background(), Request{
		ComponentID: 2,
		Metric:      driver.MetricActivePower,
		Bounds:      driver.Bounds{Lower: 0, Upper: 1000},
	})
	if !errors.Is(err, ErrUnsupportedMetric) {
		t.Errorf("Apply() error = %v, want ErrUnsupportedMetric", err)
	}
	if len(adapter.recorded()) != 0 {
		t.Error("adapter called for unsupported component")
	}
}

func TestApplyEqualBounds(t *testing.T) {
	h, _ := testHandler()

	// lower == upper pins the metric to a single value and is valid.
	err := h.Apply(context.Background(), Request{
		ComponentID: 1,
		Metric:      driver.MetricActivePower,
		Bounds:      driver.Bounds{Lower: 0, Upper: 0},
	})
	if err != nil {
		t.Errorf("Apply() error = %v", err)
	}
}

func TestRunAppliesInArrivalOrder(t *testing.T) {
	h, adapter := testHandler()

	in := make(chan Request)
	out := h.Run(context.Background(), in)

	reqs := []Request{
		{ComponentID: 1, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: -1000, Upper: 1000}},
		{ComponentID: 2, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: -2000, Upper: 2000}},
		{ComponentID: 1, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: -3000, Upper: 3000}},
	}

	go func() {
		for _, req := range reqs {
			in <- req
		}
		close(in)
	}()

	var results []ItemResult
	for res := range out {
		results = append(results, res)
	}

	if len(results) != len(reqs) {
		t.Fatalf("results = %d, want %d", len(results), len(reqs))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("item %d error = %v", i, res.Err)
		}
	}

	calls := adapter.recorded()
	if len(calls) != len(reqs) {
		t.Fatalf("adapter calls = %d, want %d", len(calls), len(reqs))
	}
	for i, call := range calls {
		if call.Bounds != reqs[i].Bounds {
			t.Errorf("call %d bounds = %+v, want %+v", i, call.Bounds, reqs[i].Bounds)
		}
	}
}

func TestRunContinuesAfterItemFailure(t *testing.T) {
	h, adapter := testHandler()

	in := make(chan Request)
	out := h.Run(context.Background(), in)

	go func() {
		in <- Request{ComponentID: 1, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 0, Upper: 500}}
		in <- Request{ComponentID: 1, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 500, Upper: 0}}
		in <- Request{ComponentID: 2, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 0, Upper: 900}}
		close(in)
	}()

	var results []ItemResult
	for res := range out {
		results = append(results, res)
	}

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("item 0 error = %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrInvalidBounds) {
		t.Errorf("item 1 error = %v, want ErrInvalidBounds", results[1].Err)
	}
	if results[2].Err != nil {
		t.Errorf("item 2 error = %v", results[2].Err)
	}

	// The invalid item never reaches the adapter; the rest do, in order.
	calls := adapter.recorded()
	if len(calls) != 2 {
		t.Fatalf("adapter calls = %d, want 2", len(calls))
	}
	if calls[0].Bounds.Upper != 500 || calls[1].Bounds.Upper != 900 {
		t.Errorf("adapter calls = %+v", calls)
	}
}

func TestRunSurfacesAdapterErrors(t *testing.T) {
	h, adapter := testHandler()
	adapter.applyErr = driver.ErrTimeout
	adapter.applyErrFor = 2

	in := make(chan Request)
	out := h.Run(context.Background(), in)

	go func() {
		in <- Request{ComponentID: 2, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 0, Upper: 100}}
		in <- Request{ComponentID: 1, Metric: driver.MetricActivePower, Bounds: driver.Bounds{Lower: 0, Upper: 200}}
		close(in)
	}()

	var results []ItemResult
	for res := range out {
		results = append(results, res)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !errors.Is(results[0].Err, driver.ErrTimeout) {
		t.Errorf("item 0 error = %v, want driver.ErrTimeout", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("item 1 error = %v", results[1].Err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h, _ := testHandler()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan Request)
	out := h.Run(ctx, in)

	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected closed result channel after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("result channel not closed after cancel")
	}
}
