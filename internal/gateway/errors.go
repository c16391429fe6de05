package gateway

import "errors"

var (
	// ErrUnknownTopic is returned by Decode for topics the core does not consume.
	ErrUnknownTopic = errors.New("gateway: unknown topic")

	// ErrMalformedPayload is returned by Decode for payloads that are not
	// the expected JSON object.
	ErrMalformedPayload = errors.New("gateway: malformed payload")

	// ErrMissingDeviceID is returned by Decode when the payload has no deviceId.
	ErrMissingDeviceID = errors.New("gateway: payload has no deviceId")

	// ErrNotConnected is returned by Publish while the broker is unreachable.
	ErrNotConnected = errors.New("gateway: transport not connected")
)
