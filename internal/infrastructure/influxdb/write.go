package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementPowerLog is the measurement flushed power summaries land in.
const MeasurementPowerLog = "power_log"

// WritePowerSummary mirrors one flushed power summary as a point tagged
// with the device id. The write is batched and non-blocking.
func (c *Client) WritePowerSummary(deviceID string, voltage, current, power, powerFactor, energyKWh float64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(powerSummaryPoint(deviceID, voltage, current, power, powerFactor, energyKWh, at))
}

func powerSummaryPoint(deviceID string, voltage, current, power, powerFactor, energyKWh float64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementPowerLog,
		map[string]string{"device_id": deviceID},
		map[string]any{
			"voltage":      voltage,
			"current":      current,
			"power":        power,
			"power_factor": powerFactor,
			"energy_kwh":   energyKWh,
		},
		at,
	)
}
