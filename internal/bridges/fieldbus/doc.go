// Package fieldbus connects VoltGrid Core to device driver bridges over
// MQTT. Bridges (SunSpec/Modbus gateways, OCPP charge point backends,
// vendor adapters) own the protocol specifics; this package speaks the
// shared JSON message contract on the voltgrid/ topic tree.
//
// The Adapter implements driver.Adapter:
//
//   - Apply publishes a command on {prefix}/command/{driver}/{address}
//     and waits for the correlated ack.
//   - ReadState publishes a read request on
//     {prefix}/request/{driver}/{request_id} and waits for the response.
//     Reads always round-trip to the device.
//   - Supports and CanStream answer from capability announcements the
//     bridges publish retained on their state topics.
//
// Live telemetry on {prefix}/telemetry/{driver}/{address} is parsed and
// forwarded to the telemetry fan-out.
package fieldbus
