package fieldbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltgrid/voltgrid-core/internal/component"
	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// defaultRequestTimeout bounds request/reply exchanges when the caller's
// context carries no deadline of its own.
const defaultRequestTimeout = 5 * time.Second

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// ComponentSource provides the component list used to map component IDs
// to driver endpoints. Satisfied by *component.Registry.
type ComponentSource interface {
	List() []component.Component
}

// TelemetrySink receives live measurement samples parsed from driver
// telemetry topics. Satisfied by *telemetry.Broker.
// Optional: if nil, telemetry messages are dropped.
type TelemetrySink interface {
	Publish(sample driver.Sample)
}

// Logger is the narrow logging interface used by the adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// endpoint is the driver-local address of one component.
type endpoint struct {
	Driver  string
	Address string
}

// capability is the announced feature set of one component, cached from
// the bridge's retained state messages.
type capability struct {
	features  map[driver.Feature]bool
	canStream bool
}

// reply carries the outcome of one correlated request or command.
type reply struct {
	state driver.State
	err   error
}

// AdapterOptions holds configuration for creating an adapter.
type AdapterOptions struct {
	// TopicPrefix is the root of the driver topic tree.
	TopicPrefix string

	// RequestTimeout bounds request/reply exchanges with bridges.
	// Zero means the default of 5 seconds.
	RequestTimeout time.Duration

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Components provides the component list for endpoint resolution.
	Components ComponentSource

	// Telemetry is the optional sink for live measurement samples.
	Telemetry TelemetrySink

	// Logger is optional structured logger.
	Logger Logger
}

// Adapter implements driver.Adapter over MQTT request/reply against one
// or more device driver bridges (SunSpec, OCPP, vendor gateways).
//
// Commands and state reads are correlated by unique IDs; capability
// announcements arrive on retained state topics so Supports and
// CanStream never touch the bus.
//
// Thread Safety: All methods are safe for concurrent use.
type Adapter struct {
	prefix         string
	requestTimeout time.Duration
	mqtt           MQTTClient
	components     ComponentSource

	sink   TelemetrySink
	sinkMu sync.RWMutex

	// Endpoint index (built from the component registry)
	byID   map[int64]endpoint
	byAddr map[endpoint]int64
	idxMu  sync.RWMutex

	// Announced capabilities per component
	caps   map[int64]capability
	capsMu sync.RWMutex

	// In-flight request/command correlation
	pending   map[string]chan reply
	pendingMu sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// NewAdapter creates a fieldbus adapter. Call Start() to subscribe to
// the driver topic tree and begin operation.
func NewAdapter(opts AdapterOptions) (*Adapter, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Components == nil {
		return nil, fmt.Errorf("component source is required")
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "voltgrid"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Adapter{
		prefix:         opts.TopicPrefix,
		requestTimeout: opts.RequestTimeout,
		mqtt:           opts.MQTTClient,
		components:     opts.Components,
		sink:           opts.Telemetry,
		byID:           make(map[int64]endpoint),
		byAddr:         make(map[endpoint]int64),
		caps:           make(map[int64]capability),
		pending:        make(map[string]chan reply),
		logger:         logger,
	}, nil
}

// SetTelemetrySink wires the live telemetry sink. The broker and the
// adapter reference each other (the broker's capability check is the
// adapter), so the sink is attached after both are constructed.
func (a *Adapter) SetTelemetrySink(sink TelemetrySink) {
	a.sinkMu.Lock()
	defer a.sinkMu.Unlock()
	a.sink = sink
}

func (a *Adapter) telemetrySink() TelemetrySink {
	a.sinkMu.RLock()
	defer a.sinkMu.RUnlock()
	return a.sink
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.loggerMu.Lock()
	defer a.loggerMu.Unlock()
	a.logger = logger
}

func (a *Adapter) log() Logger {
	a.loggerMu.RLock()
	defer a.loggerMu.RUnlock()
	return a.logger
}

// Start builds the endpoint index and subscribes to the driver topic
// tree (acks, responses, state announcements, telemetry).
func (a *Adapter) Start() error {
	a.Reindex()

	subs := []struct {
		topic   string
		handler func(topic string, payload []byte)
	}{
		{ackSubscribeTopic(a.prefix), a.handleAck},
		{responseSubscribeTopic(a.prefix), a.handleResponse},
		{stateSubscribeTopic(a.prefix), a.handleState},
		{telemetrySubscribeTopic(a.prefix), a.handleTelemetry},
	}
	for _, s := range subs {
		if err := a.mqtt.Subscribe(s.topic, 1, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, err)
		}
	}

	a.idxMu.RLock()
	endpoints := len(a.byID)
	a.idxMu.RUnlock()

	a.log().Info("fieldbus adapter started",
		"topic_prefix", a.prefix,
		"endpoints", endpoints)
	return nil
}

// Reindex rebuilds the component ID to driver endpoint mapping from the
// component registry. Call after a registry reload. Components without a
// driver or address (virtual components) are skipped.
func (a *Adapter) Reindex() {
	byID := make(map[int64]endpoint)
	byAddr := make(map[endpoint]int64)
	for _, c := range a.components.List() {
		if c.Driver == "" || c.Address == "" {
			continue
		}
		ep := endpoint{Driver: c.Driver, Address: c.Address}
		byID[c.ID] = ep
		byAddr[ep] = c.ID
	}

	a.idxMu.Lock()
	a.byID = byID
	a.byAddr = byAddr
	a.idxMu.Unlock()
}

// ReadState requests a fresh state snapshot from the component's bridge.
// The read always round-trips to the device; retained state messages are
// used only for capability announcements, never to answer reads.
func (a *Adapter) ReadState(ctx context.Context, componentID int64) (driver.State, error) {
	ep, err := a.endpointFor(componentID)
	if err != nil {
		return driver.State{}, err
	}

	requestID := uuid.NewString()
	msg := RequestMessage{
		RequestID:   requestID,
		Timestamp:   time.Now().UTC(),
		Action:      "read_state",
		ComponentID: componentID,
		Address:     ep.Address,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return driver.State{}, fmt.Errorf("marshal request: %w", err)
	}

	return a.exchange(ctx, requestID, requestTopic(a.prefix, ep.Driver, requestID), payload)
}

// Apply publishes a command to the component's bridge and waits for the
// correlated acknowledgment carrying the resulting state.
func (a *Adapter) Apply(ctx context.Context, componentID int64, action driver.Action) (driver.State, error) {
	ep, err := a.endpointFor(componentID)
	if err != nil {
		return driver.State{}, err
	}

	commandID := uuid.NewString()
	msg := CommandMessage{
		ID:          commandID,
		Timestamp:   time.Now().UTC(),
		ComponentID: componentID,
		Action:      action,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return driver.State{}, fmt.Errorf("marshal command: %w", err)
	}

	return a.exchange(ctx, commandID, commandTopic(a.prefix, ep.Driver, ep.Address), payload)
}

// Supports reports whether the component announced the given feature.
// Components that have not announced capabilities support nothing.
func (a *Adapter) Supports(componentID int64, feature driver.Feature) bool {
	a.capsMu.RLock()
	defer a.capsMu.RUnlock()
	return a.caps[componentID].features[feature]
}

// CanStream reports whether the component's bridge announced live
// telemetry support.
func (a *Adapter) CanStream(componentID int64) bool {
	a.capsMu.RLock()
	defer a.capsMu.RUnlock()
	return a.caps[componentID].canStream
}

// exchange publishes a correlated message and waits for its reply,
// bounded by the caller's context and the adapter's request timeout.
func (a *Adapter) exchange(ctx context.Context, correlationID, topic string, payload []byte) (driver.State, error) {
	ctx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()

	ch := a.track(correlationID)
	defer a.untrack(correlationID)

	if err := a.mqtt.Publish(topic, payload, 1, false); err != nil {
		return driver.State{}, fmt.Errorf("%w: publish %s: %v", driver.ErrFailure, topic, err)
	}

	select {
	case r := <-ch:
		return r.state, r.err
	case <-ctx.Done():
		return driver.State{}, fmt.Errorf("%w: no reply on %s", driver.ErrTimeout, topic)
	}
}

func (a *Adapter) track(id string) chan reply {
	ch := make(chan reply, 1)
	a.pendingMu.Lock()
	a.pending[id] = ch
	a.pendingMu.Unlock()
	return ch
}

func (a *Adapter) untrack(id string) {
	a.pendingMu.Lock()
	delete(a.pending, id)
	a.pendingMu.Unlock()
}

// resolve delivers a reply to the waiter for a correlation ID, if any.
func (a *Adapter) resolve(id string, r reply) {
	a.pendingMu.Lock()
	ch, ok := a.pending[id]
	if ok {
		delete(a.pending, id)
	}
	a.pendingMu.Unlock()
	if ok {
		ch <- r
	}
}

func (a *Adapter) endpointFor(componentID int64) (endpoint, error) {
	a.idxMu.RLock()
	ep, ok := a.byID[componentID]
	a.idxMu.RUnlock()
	if !ok {
		return endpoint{}, fmt.Errorf("%w: component %d has no driver endpoint", driver.ErrUnknownComponent, componentID)
	}
	return ep, nil
}

// handleAck routes command acknowledgments to waiting Apply calls.
func (a *Adapter) handleAck(topic string, payload []byte) {
	var msg AckMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.log().Warn("discarding malformed ack", "topic", topic, "error", err)
		return
	}
	if msg.CommandID == "" {
		return
	}

	switch msg.Status {
	case AckAccepted:
		r := reply{}
		if msg.State != nil {
			r.state = *msg.State
		}
		a.resolve(msg.CommandID, r)
	case AckTimeout:
		a.resolve(msg.CommandID, reply{err: fmt.Errorf("%w: %s", driver.ErrTimeout, ackErrorText(msg.Error))})
	default:
		a.resolve(msg.CommandID, reply{err: fmt.Errorf("%w: %s", driver.ErrFailure, ackErrorText(msg.Error))})
	}
}

// handleResponse routes request responses to waiting ReadState calls.
func (a *Adapter) handleResponse(topic string, payload []byte) {
	var msg ResponseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.log().Warn("discarding malformed response", "topic", topic, "error", err)
		return
	}
	if msg.RequestID == "" {
		return
	}

	if !msg.Success {
		err := fmt.Errorf("%w: %s", driver.ErrFailure, ackErrorText(msg.Error))
		if msg.Error != nil && msg.Error.Code == ErrCodeTimeout {
			err = fmt.Errorf("%w: %s", driver.ErrTimeout, ackErrorText(msg.Error))
		}
		a.resolve(msg.RequestID, reply{err: err})
		return
	}

	r := reply{}
	if msg.State != nil {
		r.state = *msg.State
	}
	a.resolve(msg.RequestID, r)
}

// handleState caches capability announcements from retained state topics.
func (a *Adapter) handleState(topic string, payload []byte) {
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.log().Warn("discarding malformed state message", "topic", topic, "error", err)
		return
	}

	componentID := msg.ComponentID
	if componentID == 0 {
		var ok bool
		componentID, ok = a.componentForTopic(topic)
		if !ok {
			a.log().Debug("state message for unknown endpoint", "topic", topic)
			return
		}
	}

	features := make(map[driver.Feature]bool, len(msg.Features))
	for _, f := range msg.Features {
		features[driver.Feature(f)] = true
	}

	a.capsMu.Lock()
	a.caps[componentID] = capability{features: features, canStream: msg.CanStream}
	a.capsMu.Unlock()

	a.log().Debug("capability announcement",
		"component_id", componentID,
		"features", msg.Features,
		"can_stream", msg.CanStream)
}

// handleTelemetry parses measurement samples and forwards them to the
// telemetry sink.
func (a *Adapter) handleTelemetry(topic string, payload []byte) {
	sink := a.telemetrySink()
	if sink == nil {
		return
	}

	var msg TelemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.log().Warn("discarding malformed telemetry", "topic", topic, "error", err)
		return
	}

	componentID, ok := a.componentForTopic(topic)
	if !ok {
		a.log().Debug("telemetry for unknown endpoint", "topic", topic)
		return
	}

	metric := msg.Metric
	if metric == driver.MetricUnspecified {
		metric = driver.MetricActivePower
	}

	sink.Publish(driver.Sample{
		ComponentID: componentID,
		Metric:      metric,
		Value:       msg.Value,
		Timestamp:   msg.Timestamp,
	})
}

// componentForTopic resolves the component ID for a driver-addressed
// topic of the form {prefix}/{kind}/{driver}/{address}.
func (a *Adapter) componentForTopic(topic string) (int64, bool) {
	drv, address, ok := splitDriverTopic(topic)
	if !ok {
		return 0, false
	}
	a.idxMu.RLock()
	id, ok := a.byAddr[endpoint{Driver: drv, Address: address}]
	a.idxMu.RUnlock()
	return id, ok
}

func ackErrorText(e *AckError) string {
	if e == nil {
		return "bridge reported no detail"
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
