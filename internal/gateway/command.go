package gateway

// Command actions understood by DigiPlug firmware.
const (
	ActionSetStatus         = "SET_STATUS"
	ActionSetConfig         = "SET_CONFIG"
	ActionEnterProvisioning = "ENTER_PROVISIONING"
	ActionFactoryReset      = "FACTORY_RESET"
)

// Relay states carried by SET_STATUS.
const (
	StatusOn  = "ON"
	StatusOff = "OFF"
)

// Command is the body published on a device's command topic.
type Command struct {
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// SetStatus switches the relay.
func SetStatus(on bool) Command {
	state := StatusOff
	if on {
		state = StatusOn
	}
	return Command{Action: ActionSetStatus, Payload: state}
}

// SetConfig pushes one configuration value.
func SetConfig(key string, value any) Command {
	return Command{Action: ActionSetConfig, Payload: map[string]any{key: value}}
}

// EnterProvisioning puts the device back into its pairing mode.
func EnterProvisioning() Command {
	return Command{Action: ActionEnterProvisioning}
}

// FactoryReset wipes the device's stored credentials and settings.
func FactoryReset() Command {
	return Command{Action: ActionFactoryReset}
}
