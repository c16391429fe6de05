package device

import "time"

// TypePlug is the only device type the core provisions today.
const TypePlug = "plug"

// DefaultRoom is assigned to devices that have not been placed yet.
const DefaultRoom = "Unassigned"

// DefaultOvercurrentThreshold is the trip current (amps) a new plug starts with.
const DefaultOvercurrentThreshold = 10.0

// namePrefix and nameSuffixLen build default names such as "DigiPlug E5F6A1".
const (
	namePrefix    = "DigiPlug "
	nameSuffixLen = 6
)

// Device is a claimed DigiPlug. ID is the hardware identifier the plug
// reports over MQTT and is unique across all accounts.
type Device struct {
	ID       string `json:"deviceId"`
	OwnerID  string `json:"owner"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Room     string `json:"room"`
	Active   bool   `json:"active"`
	Online   bool   `json:"isOnline"`
	Favorite bool   `json:"isFavorite"`
	Config   Config `json:"attributes"`

	WifiSSID string `json:"wifiSsid,omitempty"`
	WifiRSSI int    `json:"wifiRssi,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Config holds the device-side settings the core pushes with SET_CONFIG.
type Config struct {
	// OvercurrentThreshold is the current in amps above which the plug
	// cuts power and raises an OVERCURRENT alert.
	OvercurrentThreshold float64 `json:"overcurrentThreshold"`
}

// New returns an unsaved plug for a freshly claimed hardware id.
func New(id, ownerID string) *Device {
	return &Device{
		ID:      id,
		OwnerID: ownerID,
		Name:    DefaultName(id),
		Type:    TypePlug,
		Room:    DefaultRoom,
		Config:  Config{OvercurrentThreshold: DefaultOvercurrentThreshold},
	}
}

// DefaultName derives "DigiPlug XXXXXX" from the last six characters of id.
func DefaultName(id string) string {
	if len(id) <= nameSuffixLen {
		return namePrefix + id
	}
	return namePrefix + id[len(id)-nameSuffixLen:]
}
