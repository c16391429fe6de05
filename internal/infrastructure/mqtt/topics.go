package mqtt

import "strings"

// DefaultTopicPrefix is the root topic level shared by devices and the core.
const DefaultTopicPrefix = "digihome"

// Topic categories (second level).
const (
	CategoryProvisioning = "provisioning"
	CategoryDevices      = "devices"
	CategoryCore         = "core"
)

// Topic kinds (last level).
const (
	KindOnline    = "online"
	KindConfirm   = "confirm"
	KindStatus    = "status"
	KindTelemetry = "telemetry"
	KindAlert     = "alert"
	KindCommand   = "command"
)

// Topics builds DigiHome topic strings under one prefix.
//
//	topics := mqtt.NewTopics("digihome")
//	topics.DeviceCommand("A1B2C3D4E5F6")
//	// Returns: "digihome/devices/A1B2C3D4E5F6/command"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root topic level.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

func (t Topics) join(levels ...string) string {
	return t.Prefix() + "/" + strings.Join(levels, "/")
}

// ProvisioningOnline is where unclaimed devices announce themselves.
func (t Topics) ProvisioningOnline() string {
	return t.join(CategoryProvisioning, KindOnline)
}

// ProvisioningConfirm is where a device reports the physical button press.
func (t Topics) ProvisioningConfirm() string {
	return t.join(CategoryProvisioning, KindConfirm)
}

// DeviceStatus returns the presence topic of one device.
func (t Topics) DeviceStatus(deviceID string) string {
	return t.join(CategoryDevices, deviceID, KindStatus)
}

// DeviceTelemetry returns the metering topic of one device.
func (t Topics) DeviceTelemetry(deviceID string) string {
	return t.join(CategoryDevices, deviceID, KindTelemetry)
}

// DeviceAlert returns the fault topic of one device.
func (t Topics) DeviceAlert(deviceID string) string {
	return t.join(CategoryDevices, deviceID, KindAlert)
}

// DeviceCommand returns the topic a device listens on for commands.
func (t Topics) DeviceCommand(deviceID string) string {
	return t.join(CategoryDevices, deviceID, KindCommand)
}

// CoreStatus is the retained presence topic of the core itself.
func (t Topics) CoreStatus() string {
	return t.join(CategoryCore, KindStatus)
}

// All matches every topic under the prefix.
func (t Topics) All() string {
	return t.Prefix() + "/#"
}

// Parse splits a topic under the prefix into its category (the level
// after the prefix) and kind (the last level). ok is false for topics
// outside the prefix or with fewer than two levels below it.
func (t Topics) Parse(topic string) (category, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix()+"/")
	if !found {
		return "", "", false
	}
	levels := strings.Split(rest, "/")
	if len(levels) < 2 {
		return "", "", false
	}
	return levels[0], levels[len(levels)-1], true
}
