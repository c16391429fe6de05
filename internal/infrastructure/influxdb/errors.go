package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the mirror is off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed means the server did not answer the initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned after Close or on a nil client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps errors passed to the SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
