package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/digihome/digihome-core/internal/infrastructure/mqtt"
	"github.com/digihome/digihome-core/internal/telemetry"
)

// Message is one decoded inbound message. The set of implementations is
// closed: OnlineMessage, ConfirmMessage, StatusMessage, TelemetryMessage
// and AlertMessage.
type Message interface {
	// Device returns the id of the device the message is about.
	Device() string
	isMessage()
}

// OnlineMessage is an unclaimed device announcing itself.
type OnlineMessage struct {
	DeviceID string `json:"deviceId"`
}

// ConfirmMessage reports the physical button press on an announced device.
type ConfirmMessage struct {
	DeviceID string `json:"deviceId"`
}

// StatusMessage reports device presence.
type StatusMessage struct {
	DeviceID string
	Online   bool
}

// TelemetryMessage carries one metering sample. Raw is the payload as
// received, which is what live sessions are sent.
type TelemetryMessage struct {
	Sample telemetry.Sample
	Raw    []byte
}

// AlertMessage reports a fault detected on the device.
type AlertMessage struct {
	DeviceID string  `json:"deviceId"`
	Error    string  `json:"error"`
	Value    float64 `json:"value"`
}

func (m OnlineMessage) Device() string    { return m.DeviceID }
func (m ConfirmMessage) Device() string   { return m.DeviceID }
func (m StatusMessage) Device() string    { return m.DeviceID }
func (m TelemetryMessage) Device() string { return m.Sample.DeviceID }
func (m AlertMessage) Device() string     { return m.DeviceID }

func (OnlineMessage) isMessage()    {}
func (ConfirmMessage) isMessage()   {}
func (StatusMessage) isMessage()    {}
func (TelemetryMessage) isMessage() {}
func (AlertMessage) isMessage()     {}

// statusWire accepts both the current "online" field and the legacy
// "isOnline" field older firmware sends.
type statusWire struct {
	DeviceID string `json:"deviceId"`
	Online   *bool  `json:"online"`
	IsOnline *bool  `json:"isOnline"`
}

// Decode classifies topic and decodes payload into a Message.
//
// It returns ErrUnknownTopic for topics it does not handle (including the
// core's own command and status topics), ErrMalformedPayload for invalid
// JSON and ErrMissingDeviceID when the payload names no device.
func Decode(topics mqtt.Topics, topic string, payload []byte) (Message, error) {
	category, kind, ok := topics.Parse(topic)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	var msg Message
	var err error

	switch {
	case category == mqtt.CategoryProvisioning && kind == mqtt.KindOnline:
		var m OnlineMessage
		err = json.Unmarshal(payload, &m)
		msg = m
	case category == mqtt.CategoryProvisioning && kind == mqtt.KindConfirm:
		var m ConfirmMessage
		err = json.Unmarshal(payload, &m)
		msg = m
	case category == mqtt.CategoryDevices && kind == mqtt.KindStatus:
		var w statusWire
		if err = json.Unmarshal(payload, &w); err == nil {
			m := StatusMessage{DeviceID: w.DeviceID}
			switch {
			case w.Online != nil:
				m.Online = *w.Online
			case w.IsOnline != nil:
				m.Online = *w.IsOnline
			default:
				return nil, fmt.Errorf("%w: status without online flag", ErrMalformedPayload)
			}
			msg = m
		}
	case category == mqtt.CategoryDevices && kind == mqtt.KindTelemetry:
		var s telemetry.Sample
		err = json.Unmarshal(payload, &s)
		msg = TelemetryMessage{Sample: s, Raw: payload}
	case category == mqtt.CategoryDevices && kind == mqtt.KindAlert:
		var m AlertMessage
		err = json.Unmarshal(payload, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if msg.Device() == "" {
		return nil, ErrMissingDeviceID
	}
	return msg, nil
}
