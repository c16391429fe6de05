// Package api implements the HTTP and WebSocket surface of DigiHome Core.
//
// It provides:
//   - the live session endpoint the mobile app keeps open to receive
//     telemetry for its account's plugs
//   - device claim and command endpoints that publish to the plugs
//   - push token registration and an on-demand budget check
//   - a health endpoint for the store and the broker connection
//
// Every route except /api/v1/health requires a bearer token issued by the
// account service. The WebSocket endpoint also accepts the token as a
// "token" query parameter.
package api
