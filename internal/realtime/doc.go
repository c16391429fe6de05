// Package realtime routes live updates to the one WebSocket session each
// account has open.
//
// Delivery is best effort: an update for an account without an open
// session is dropped, because the telemetry pipeline already persists the
// data that matters.
//
//	router := realtime.NewRouter()
//	router.Register(accountID, session)
//	defer router.Unregister(accountID, session)
//
//	router.Forward(accountID, payload)
package realtime
