package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voltgrid/voltgrid-core/internal/driver"
)

// wsURL converts an httptest server URL to a websocket URL.
func wsURL(ts string, path string) string {
	return "ws" + strings.TrimPrefix(ts, "http") + path
}

// dialWS opens a websocket connection and registers cleanup.
func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForSubscriber polls until the broker has a subscriber for the component.
func waitForSubscriber(t *testing.T, srv *Server, componentID int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if srv.broker.SubscriberCount(componentID) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscriber never registered")
}

func TestComponentDataStream(t *testing.T) {
	srv, ts, _ := newTestServer(t)

	conn := dialWS(t, wsURL(ts.URL, "/api/v1/components/2/data"))
	waitForSubscriber(t, srv, 2)

	want := driver.Sample{
		ComponentID: 2,
		Metric:      driver.MetricActivePower,
		Value:       3300,
		Timestamp:   time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
	}
	srv.broker.Publish(want)

	//nolint:errcheck // deadline is best-effort in tests
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got driver.Sample
	if err := json.Unmarshal(message, &got); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if got.ComponentID != 2 || got.Value != 3300 || got.Metric != driver.MetricActivePower {
		t.Errorf("sample = %+v", got)
	}
}

func TestComponentDataStreamDeliversInOrder(t *testing.T) {
	srv, ts, _ := newTestServer(t)

	conn := dialWS(t, wsURL(ts.URL, "/api/v1/components/4/data"))
	waitForSubscriber(t, srv, 4)

	for _, v := range []float64{1, 2, 3} {
		srv.broker.Publish(driver.Sample{ComponentID: 4, Metric: driver.MetricActivePower, Value: v})
	}

	for _, want := range []float64{1, 2, 3} {
		//nolint:errcheck // deadline is best-effort in tests
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var got driver.Sample
		if err := json.Unmarshal(message, &got); err != nil {
			t.Fatalf("unmarshal sample: %v", err)
		}
		if got.Value != want {
			t.Errorf("value = %v, want %v", got.Value, want)
		}
	}
}

func TestComponentDataStreamRejections(t *testing.T) {
	_, ts, _ := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"unknown component", "/api/v1/components/99/data", http.StatusNotFound},
		{"streaming unsupported", "/api/v1/components/3/data", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, tt.path), nil)
			if err == nil {
				conn.Close()
				t.Fatal("expected handshake rejection")
			}
			if resp == nil || resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %v, want %d", resp, tt.wantStatus)
			}
			if resp != nil {
				resp.Body.Close()
			}
		})
	}
}

func TestComponentDataStreamSubscriberReleasedOnClose(t *testing.T) {
	srv, ts, _ := newTestServer(t)

	conn := dialWS(t, wsURL(ts.URL, "/api/v1/components/2/data"))
	waitForSubscriber(t, srv, 2)

	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if srv.broker.SubscriberCount(2) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscription not released after disconnect")
}

func sendBoundsItem(t *testing.T, conn *websocket.Conn, item boundsStreamItem) {
	t.Helper()
	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal item: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func readBoundsResult(t *testing.T, conn *websocket.Conn) boundsStreamResult {
	t.Helper()
	//nolint:errcheck // deadline is best-effort in tests
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var res boundsStreamResult
	if err := json.Unmarshal(message, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return res
}

func TestBoundsStream(t *testing.T) {
	_, ts, adapter := newTestServer(t)

	conn := dialWS(t, wsURL(ts.URL, "/api/v1/bounds/stream"))

	items := []boundsStreamItem{
		{ComponentID: 2, TargetMetric: driver.MetricActivePower, LowerBound: -5000, UpperBound: 5000},
		{ComponentID: 3, TargetMetric: driver.MetricActivePower, LowerBound: 800, UpperBound: -800},
		{ComponentID: 3, TargetMetric: driver.MetricActivePower, LowerBound: -2000, UpperBound: 2000},
	}
	for _, item := range items {
		sendBoundsItem(t, conn, item)
	}

	first := readBoundsResult(t, conn)
	if !first.OK || first.ComponentID != 2 {
		t.Errorf("first = %+v", first)
	}

	second := readBoundsResult(t, conn)
	if second.OK {
		t.Error("inverted bounds accepted")
	}
	if second.Error == nil || second.Error.Code != ErrCodeInvalidArgument {
		t.Errorf("second error = %+v", second.Error)
	}

	// The stream survives the failed item.
	third := readBoundsResult(t, conn)
	if !third.OK || third.ComponentID != 3 {
		t.Errorf("third = %+v", third)
	}

	// Only the two valid items reached the adapter, in arrival order.
	applied := adapter.appliedActions()
	if len(applied) != 2 {
		t.Fatalf("applied = %d actions, want 2", len(applied))
	}
	if applied[0].ComponentID != 2 || applied[0].Action.Kind != driver.ActionSetBounds {
		t.Errorf("applied[0] = %+v", applied[0])
	}
	if applied[0].Action.Bounds == nil || applied[0].Action.Bounds.Upper != 5000 {
		t.Errorf("applied[0] bounds = %+v", applied[0].Action.Bounds)
	}
	if applied[1].ComponentID != 3 || applied[1].Action.Bounds.Upper != 2000 {
		t.Errorf("applied[1] = %+v", applied[1])
	}
}

func TestBoundsStreamErrorCodes(t *testing.T) {
	_, ts, _ := newTestServer(t)

	conn := dialWS(t, wsURL(ts.URL, "/api/v1/bounds/stream"))

	tests := []struct {
		name     string
		item     boundsStreamItem
		wantCode string
	}{
		{
			name:     "unknown component",
			item:     boundsStreamItem{ComponentID: 99, TargetMetric: driver.MetricActivePower, LowerBound: 0, UpperBound: 1},
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "unsupported metric",
			item:     boundsStreamItem{ComponentID: 2, TargetMetric: "reactive_power", LowerBound: 0, UpperBound: 1},
			wantCode: ErrCodeUnsupportedOperation,
		},
		{
			name:     "component without bounds support",
			item:     boundsStreamItem{ComponentID: 4, TargetMetric: driver.MetricActivePower, LowerBound: 0, UpperBound: 1},
			wantCode: ErrCodeUnsupportedOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendBoundsItem(t, conn, tt.item)
			res := readBoundsResult(t, conn)
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Error == nil || res.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %q", res.Error, tt.wantCode)
			}
		})
	}
}
