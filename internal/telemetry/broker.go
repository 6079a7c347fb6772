package telemetry

import (
	"sync"
	"time"

	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// OverflowPolicy decides what happens when a subscriber's buffer is full.
type OverflowPolicy string

// Overflow policies.
const (
	// DropOldest discards the oldest buffered sample to make room for the
	// new one. Subscribers always converge on recent data.
	DropOldest OverflowPolicy = "drop_oldest"

	// DropNewest discards the incoming sample when the buffer is full.
	DropNewest OverflowPolicy = "drop_newest"
)

// StreamChecker is the capability interface the broker needs from the
// driver adapter.
type StreamChecker interface {
	// CanStream reports whether the adapter declares telemetry support
	// for the component.
	CanStream(componentID int64) bool
}

// History receives every published sample for long-term storage.
// May be nil if no time-series database is wired.
type History interface {
	// WriteComponentMetric records one sample. Non-blocking.
	WriteComponentMetric(componentID int64, metric string, value float64)

	// WritePowerMetric records an active power sample in the dedicated
	// power measurement the flow dashboards query. Non-blocking.
	WritePowerMetric(componentID int64, powerWatts, energyKWh float64)
}

// Logger is the narrow logging interface used by the broker.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Subscription is one open telemetry stream for a component. Samples
// arrive on C(); Cancel() releases the buffer and detaches from the
// broker deterministically.
type Subscription struct {
	componentID int64
	ch          chan driver.Sample
	broker      *Broker
	closeOnce   sync.Once
}

// C returns the sample channel. It is closed when the subscription is
// cancelled.
func (s *Subscription) C() <-chan driver.Sample {
	return s.ch
}

// ComponentID returns the component this subscription follows.
func (s *Subscription) ComponentID() int64 {
	return s.componentID
}

// Cancel detaches the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.closeOnce.Do(func() {
		s.broker.remove(s)
		close(s.ch)
	})
}

// Broker multiplexes adapter telemetry to per-component subscriber sets.
//
// Delivery is best-effort broadcast: each subscriber has its own bounded
// buffer, and a slow or stalled subscriber only loses its own samples; it
// never blocks publication to other subscribers or to the adapter feed.
//
// All methods are safe for concurrent use.
type Broker struct {
	checker    StreamChecker
	history    History
	bufferSize int
	policy     OverflowPolicy
	logger     Logger

	mu   sync.RWMutex
	subs map[int64]map[*Subscription]struct{}
}

const defaultBufferSize = 64

// NewBroker creates a telemetry broker.
//
// Parameters:
//   - checker: static streaming-capability lookup (the driver adapter)
//   - history: time-series sink for every published sample (may be nil)
//   - bufferSize: per-subscriber buffer capacity
//   - policy: what to drop when a subscriber's buffer overflows
func NewBroker(checker StreamChecker, history History, bufferSize int, policy OverflowPolicy) *Broker {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if policy != DropOldest && policy != DropNewest {
		policy = DropOldest
	}
	return &Broker{
		checker:    checker,
		history:    history,
		bufferSize: bufferSize,
		policy:     policy,
		logger:     noopLogger{},
		subs:       make(map[int64]map[*Subscription]struct{}),
	}
}

// SetLogger sets the logger for the broker.
func (b *Broker) SetLogger(logger Logger) {
	b.logger = logger
}

// Subscribe opens a telemetry stream for a component. Every subscription
// receives every published sample independently (broadcast, not
// queue-competing). The caller must Cancel() the subscription when done.
func (b *Broker) Subscribe(componentID int64) *Subscription {
	sub := &Subscription{
		componentID: componentID,
		ch:          make(chan driver.Sample, b.bufferSize),
		broker:      b,
	}

	b.mu.Lock()
	set, ok := b.subs[componentID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[componentID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers a sample to every open subscription for its component.
// Publishing with zero subscribers is a no-op, never an error. A missing
// timestamp is stamped with the arrival time.
func (b *Broker) Publish(sample driver.Sample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	if b.history != nil {
		// Power flows go to their own measurement; cumulative energy is
		// not part of the sample stream.
		if sample.Metric == driver.MetricActivePower {
			b.history.WritePowerMetric(sample.ComponentID, sample.Value, 0)
		} else {
			b.history.WriteComponentMetric(sample.ComponentID, string(sample.Metric), sample.Value)
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[sample.ComponentID] {
		b.trySend(sub, sample)
	}
}

// trySend delivers without ever blocking the publisher. On a full buffer
// the overflow policy decides which sample is lost.
func (b *Broker) trySend(sub *Subscription, sample driver.Sample) {
	select {
	case sub.ch <- sample:
		return
	default:
	}

	if b.policy == DropNewest {
		b.logger.Debug("telemetry buffer full, dropping sample",
			"component_id", sample.ComponentID,
		)
		return
	}

	// DropOldest: evict one buffered sample, then retry once. A concurrent
	// reader may have drained the buffer in between; either way the send
	// stays non-blocking.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- sample:
	default:
	}
}

// CanStream reports whether the adapter declares telemetry support for
// the component. A static capability check with no side effects.
func (b *Broker) CanStream(componentID int64) bool {
	return b.checker.CanStream(componentID)
}

// SubscriberCount returns the number of open subscriptions for a
// component. Useful for monitoring and tests.
func (b *Broker) SubscriberCount(componentID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[componentID])
}

// remove detaches a subscription from the broker.
func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[sub.componentID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.componentID)
	}
}
