// Package mqtt provides the broker connection of DigiHome Core.
//
// Devices (DigiPlugs) and the core meet on one broker under a shared
// topic prefix:
//
//	digihome/provisioning/online          device -> core
//	digihome/provisioning/confirm         device -> core
//	digihome/devices/<id>/status          device -> core
//	digihome/devices/<id>/telemetry       device -> core
//	digihome/devices/<id>/alert           device -> core
//	digihome/devices/<id>/command         core -> device
//	digihome/core/status                  core presence (retained, LWT)
//
// The client reconnects with exponential backoff and restores its
// subscriptions. Publishing while disconnected fails fast with
// ErrNotConnected; there is no outbound queue.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().All(), client.QoS(), gw.HandleMessage)
package mqtt
