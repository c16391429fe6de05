// Package influxdb mirrors flushed power summaries into InfluxDB.
//
// The SQLite store keeps the authoritative power logs used for budget
// calculations. InfluxDB receives a copy of each summary for dashboards
// and long-range queries, written through the non-blocking batched API.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without the mirror
//	}
//	defer client.Close()
//
//	client.WritePowerSummary("A1B2C3D4E5F6", 220.1, 0.42, 88.5, 0.93, 12.7, time.Now())
package influxdb
