package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteComponentMetric records one component sample. Writes are batched and
// flushed asynchronously; a disconnected client drops the point silently.
//
//	client.WriteComponentMetric(7, "power_output_w", 4820.5)
//	client.WriteComponentMetric(12, "state_of_charge_pct", 63.0)
func (c *Client) WriteComponentMetric(componentID int64, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"component_metrics",
		map[string]string{
			"component_id": strconv.FormatInt(componentID, 10),
			"metric":       metric,
		},
		map[string]interface{}{"value": value},
		time.Now(),
	))
}

// WritePowerMetric records a power flow sample. Positive watts means the
// component is producing or discharging. A zero energyKWh means the cumulative
// reading is unknown and the field is omitted.
func (c *Client) WritePowerMetric(componentID int64, powerWatts float64, energyKWh float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{"power_watts": powerWatts}
	if energyKWh > 0 {
		fields["energy_kwh"] = energyKWh
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"power",
		map[string]string{"component_id": strconv.FormatInt(componentID, 10)},
		fields,
		time.Now(),
	))
}
