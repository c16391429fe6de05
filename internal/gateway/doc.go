// Package gateway is the core's only contact with the MQTT broker.
//
// Inbound, it subscribes to everything under the topic prefix and routes
// each message by topic:
//
//	digihome/provisioning/online      -> ClaimTracker.Online
//	digihome/provisioning/confirm     -> ClaimTracker.Confirm
//	digihome/devices/<id>/status      -> StatusRecorder.SetOnline
//	digihome/devices/<id>/telemetry   -> TelemetryIngester.Ingest
//	digihome/devices/<id>/alert       -> AlertHandler.HandleAlert
//
// Outbound, components send typed Commands to
// digihome/devices/<id>/command through SendCommand.
package gateway
