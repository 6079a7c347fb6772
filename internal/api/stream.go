package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltgrid/voltgrid-core/internal/bounds"
	"github.com/voltgrid/voltgrid-core/internal/driver"
	"github.com/voltgrid/voltgrid-core/internal/telemetry"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleComponentData streams live telemetry samples for one component
// over a WebSocket connection.
//
// GET /api/v1/components/{id}/data
//
// Each sample is one JSON text message. A subscriber that falls behind
// loses samples according to the fan-out overflow policy; it is never
// able to stall other subscribers or the publisher.
func (s *Server) handleComponentData(w http.ResponseWriter, r *http.Request) {
	id, ok := componentIDParam(w, r)
	if !ok {
		return
	}
	if s.broker == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "telemetry streaming is not configured")
		return
	}
	if _, err := s.registry.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}
	if !s.broker.CanStream(id) {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnsupportedOperation,
			"component does not support telemetry streaming")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sub := s.broker.Subscribe(id)
	ctx, cancel := context.WithCancel(s.baseStreamCtx())

	s.logger.Debug("telemetry stream opened", "component_id", id)

	go s.discardReads(conn, cancel)
	go s.writeSamples(ctx, conn, sub, cancel)
}

// writeSamples is the write pump for one telemetry stream.
func (s *Server) writeSamples(ctx context.Context, conn *websocket.Conn, sub *telemetry.Subscription, cancel context.CancelFunc) {
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		sub.Cancel()
		cancel()
		conn.Close()
		s.logger.Debug("telemetry stream closed", "component_id", sub.ComponentID())
	}()

	for {
		select {
		case sample := <-sub.C():
			data, err := json.Marshal(sample)
			if err != nil {
				s.logger.Error("marshalling telemetry sample", "error", err)
				continue
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			//nolint:errcheck // Best-effort close message
			conn.WriteMessage(websocket.CloseMessage, nil)
			return
		}
	}
}

// discardReads is the read pump for server-stream connections: the client
// sends nothing meaningful, but reading keeps pong handling alive and
// detects disconnects.
func (s *Server) discardReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// boundsStreamItem is one inbound message on the bounds stream.
type boundsStreamItem struct {
	ComponentID  int64         `json:"component_id"`
	TargetMetric driver.Metric `json:"target_metric"`
	LowerBound   float64       `json:"lower_bound"`
	UpperBound   float64       `json:"upper_bound"`
}

// boundsStreamResult is the per-item outcome written back to the caller.
type boundsStreamResult struct {
	ComponentID  int64         `json:"component_id"`
	TargetMetric driver.Metric `json:"target_metric"`
	OK           bool          `json:"ok"`
	Error        *Error        `json:"error,omitempty"`
}

// handleBoundsStream accepts a client stream of operating-bound updates
// over a WebSocket connection.
//
// GET /api/v1/bounds/stream
//
// Each inbound text message is one bound update; items are applied in
// strict arrival order. The per-item outcome is written back on the same
// connection. A failing item does not terminate the stream.
func (s *Server) handleBoundsStream(w http.ResponseWriter, r *http.Request) {
	if s.bounds == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "bound updates are not configured")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(s.baseStreamCtx())
	in := make(chan bounds.Request)
	results := s.bounds.Run(ctx, in)

	go s.readBoundsRequests(ctx, conn, in, cancel)
	go s.writeBoundsResults(ctx, conn, results, cancel)

	s.logger.Debug("bounds stream opened")
}

// readBoundsRequests is the read pump for one bounds stream.
func (s *Server) readBoundsRequests(ctx context.Context, conn *websocket.Conn, in chan<- bounds.Request, cancel context.CancelFunc) {
	defer func() {
		close(in)
		cancel()
	}()

	conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("bounds stream read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		var item boundsStreamItem
		if err := json.Unmarshal(message, &item); err != nil {
			s.logger.Warn("discarding malformed bound update", "error", err)
			continue
		}
		req := bounds.Request{
			ComponentID: item.ComponentID,
			Metric:      item.TargetMetric,
			Bounds:      driver.Bounds{Lower: item.LowerBound, Upper: item.UpperBound},
		}
		select {
		case in <- req:
		case <-ctx.Done():
			return
		}
	}
}

// writeBoundsResults is the write pump for one bounds stream.
func (s *Server) writeBoundsResults(ctx context.Context, conn *websocket.Conn, results <-chan bounds.ItemResult, cancel context.CancelFunc) {
	pingInterval := time.Duration(s.wsCfg.PingInterval) * time.Second
	pongWait := time.Duration(s.wsCfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
		s.logger.Debug("bounds stream closed")
	}()

	for {
		select {
		case res, ok := <-results:
			if !ok {
				//nolint:errcheck // Best-effort close message
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			out := boundsStreamResult{
				ComponentID:  res.Request.ComponentID,
				TargetMetric: res.Request.Metric,
				OK:           res.Err == nil,
			}
			if res.Err != nil {
				status, code := classifyDomainError(res.Err)
				out.Error = &Error{Status: status, Code: code, Message: res.Err.Error()}
			}
			data, err := json.Marshal(out)
			if err != nil {
				s.logger.Error("marshalling bound result", "error", err)
				continue
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// baseStreamCtx returns the context streaming connections descend from.
func (s *Server) baseStreamCtx() context.Context {
	if s.streamCtx != nil {
		return s.streamCtx
	}
	return context.Background()
}
