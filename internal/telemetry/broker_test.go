package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// staticChecker reports streaming capability from a fixed set.
type staticChecker struct {
	streamable map[int64]bool
}

func (s staticChecker) CanStream(componentID int64) bool {
	return s.streamable[componentID]
}

// recordingHistory captures every sample written to the history sink,
// keeping power writes separate from generic metric writes.
type recordingHistory struct {
	mu      sync.Mutex
	metrics []string
	powerW  []float64
}

func (h *recordingHistory) WriteComponentMetric(componentID int64, metric string, value float64) {
	h.mu.Lock()
	h.metrics = append(h.metrics, metric)
	h.mu.Unlock()
}

func (h *recordingHistory) WritePowerMetric(componentID int64, powerWatts, energyKWh float64) {
	h.mu.Lock()
	h.powerW = append(h.powerW, powerWatts)
	h.mu.Unlock()
}

func sample(componentID int64, value float64) driver.Sample {
	return driver.Sample{
		ComponentID: componentID,
		Metric:      driver.MetricActivePower,
		Value:       value,
	}
}

func TestSubscribePublish(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 8, DropOldest)

	sub := b.Subscribe(7)
	defer sub.Cancel()

	b.Publish(sample(7, 100))

	select {
	case got := <-sub.C():
		if got.Value != 100 {
			t.Errorf("received value = %g, want 100", got.Value)
		}
		if got.Timestamp.IsZero() {
			t.Error("sample was not stamped with arrival time")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sample")
	}
}

func TestPublish_Broadcast(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 8, DropOldest)

	sub1 := b.Subscribe(7)
	defer sub1.Cancel()
	sub2 := b.Subscribe(7)
	defer sub2.Cancel()

	b.Publish(sample(7, 42))

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case got := <-sub.C():
			if got.Value != 42 {
				t.Errorf("subscriber %d value = %g, want 42", i, got.Value)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive broadcast", i)
		}
	}
}

func TestPublish_ZeroSubscribers(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 8, DropOldest)

	// Must not block or panic.
	for i := 0; i < 100; i++ {
		b.Publish(sample(7, float64(i)))
	}
}

func TestPublish_OtherComponentNotDelivered(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 8, DropOldest)

	sub := b.Subscribe(7)
	defer sub.Cancel()

	b.Publish(sample(8, 1))

	select {
	case got := <-sub.C():
		t.Errorf("received sample for wrong component: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_SlowSubscriberDoesNotBlockFast(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 4, DropOldest)

	slow := b.Subscribe(7) // never reads
	defer slow.Cancel()
	fast := b.Subscribe(7)
	defer fast.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(sample(7, float64(i)))
			// Fast subscriber keeps up.
			select {
			case <-fast.C():
			case <-time.After(time.Second):
				t.Error("fast subscriber starved by slow one")
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestPublish_DropOldestKeepsLatest(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 2, DropOldest)

	sub := b.Subscribe(7)
	defer sub.Cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(sample(7, float64(i)))
	}

	// Buffer holds the two most recent samples.
	first := <-sub.C()
	second := <-sub.C()
	if first.Value != 4 || second.Value != 5 {
		t.Errorf("buffered values = %g, %g; want 4, 5", first.Value, second.Value)
	}
}

func TestPublish_DropNewestKeepsEarliest(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 2, DropNewest)

	sub := b.Subscribe(7)
	defer sub.Cancel()

	for i := 1; i <= 5; i++ {
		b.Publish(sample(7, float64(i)))
	}

	first := <-sub.C()
	second := <-sub.C()
	if first.Value != 1 || second.Value != 2 {
		t.Errorf("buffered values = %g, %g; want 1, 2", first.Value, second.Value)
	}
}

func TestCancel_ReleasesSubscription(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 8, DropOldest)

	sub := b.Subscribe(7)
	if got := b.SubscriberCount(7); got != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", got)
	}

	sub.Cancel()
	if got := b.SubscriberCount(7); got != 0 {
		t.Errorf("SubscriberCount() after Cancel = %d, want 0", got)
	}

	// Channel is closed.
	if _, open := <-sub.C(); open {
		t.Error("subscription channel still open after Cancel")
	}

	// Idempotent.
	sub.Cancel()
}

func TestCanStream(t *testing.T) {
	b := NewBroker(staticChecker{streamable: map[int64]bool{7: true}}, nil, 8, DropOldest)

	if !b.CanStream(7) {
		t.Error("CanStream(7) = false, want true")
	}
	if b.CanStream(8) {
		t.Error("CanStream(8) = true, want false")
	}
}

func TestPublish_WritesHistory(t *testing.T) {
	history := &recordingHistory{}
	b := NewBroker(staticChecker{}, history, 8, DropOldest)

	// History receives samples even with zero subscribers. Active power
	// goes to the power measurement; other metrics to the generic one.
	b.Publish(sample(7, 1500))
	b.Publish(sample(7, 2000))
	b.Publish(driver.Sample{ComponentID: 7, Metric: "soc_pct", Value: 63})

	history.mu.Lock()
	defer history.mu.Unlock()
	if len(history.powerW) != 2 {
		t.Errorf("power writes = %d, want 2", len(history.powerW))
	}
	if len(history.powerW) == 2 && (history.powerW[0] != 1500 || history.powerW[1] != 2000) {
		t.Errorf("power values = %v, want [1500 2000]", history.powerW)
	}
	if len(history.metrics) != 1 || history.metrics[0] != "soc_pct" {
		t.Errorf("metric writes = %v, want [soc_pct]", history.metrics)
	}
}

func TestNewBroker_Defaults(t *testing.T) {
	b := NewBroker(staticChecker{}, nil, 0, OverflowPolicy("bogus"))

	if b.bufferSize != defaultBufferSize {
		t.Errorf("bufferSize = %d, want default %d", b.bufferSize, defaultBufferSize)
	}
	if b.policy != DropOldest {
		t.Errorf("policy = %s, want drop_oldest", b.policy)
	}
}
