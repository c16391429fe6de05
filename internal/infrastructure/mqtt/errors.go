package mqtt

import "errors"

// Sentinel errors; match with errors.Is.
var (
	// ErrNotConnected means the broker link is down right now.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the first connection never came up.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps broker-side or timeout publish failures.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps broker-side or timeout subscribe failures.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
