package telemetry

import "time"

// Aggregate summarises samples for one device. Voltage, current, power
// and power factor are averaged; energy is taken from the last sample.
// The summary is stamped with at, the flush time. Aggregate returns a
// zero PowerLog when samples is empty.
func Aggregate(deviceID string, samples []Sample, at time.Time) PowerLog {
	if len(samples) == 0 {
		return PowerLog{}
	}

	var v, i, p, pf float64
	for _, s := range samples {
		v += s.Voltage
		i += s.Current
		p += s.Power
		pf += s.PowerFactor
	}
	n := float64(len(samples))

	return PowerLog{
		DeviceID:    deviceID,
		Voltage:     v / n,
		Current:     i / n,
		Power:       p / n,
		PowerFactor: pf / n,
		EnergyKWh:   samples[len(samples)-1].EnergyKWh,
		Timestamp:   at,
	}
}
