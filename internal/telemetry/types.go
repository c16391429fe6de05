package telemetry

import "time"

// Sample is one telemetry report from a plug.
type Sample struct {
	DeviceID    string  `json:"deviceId"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Power       float64 `json:"power"`
	EnergyKWh   float64 `json:"energyKWh"`
	PowerFactor float64 `json:"powerFactor"`

	// WifiSSID and WifiRSSI describe the plug's link. They update the
	// device record and are not aggregated.
	WifiSSID string `json:"wifiSsid,omitempty"`
	WifiRSSI int    `json:"wifiRssi,omitempty"`

	// ReceivedAt is set by the core when the sample arrives.
	ReceivedAt time.Time `json:"-"`
}

// PowerLog is the summary of one device's samples over a flush interval.
type PowerLog struct {
	DeviceID    string
	Voltage     float64
	Current     float64
	Power       float64
	PowerFactor float64

	// EnergyKWh is the plug's cumulative counter from the last sample.
	EnergyKWh float64
	Timestamp time.Time
}

// EnergyBounds holds the first and last cumulative energy readings of a
// device over a period.
type EnergyBounds struct {
	First float64
	Last  float64
	Count int
}

// Consumed returns the energy used over the period. A counter reset on
// the plug yields zero rather than a negative value.
func (b EnergyBounds) Consumed() float64 {
	if b.Count == 0 || b.Last < b.First {
		return 0
	}
	return b.Last - b.First
}
