// Package telemetry turns the plugs' frequent power readings into live
// updates for connected users and, every flush interval, one averaged
// power log per device in the store.
//
// Only the immediate forward is real time. Buffered samples live in
// memory until the next flush; a crash or a failed write loses at most
// one interval.
package telemetry
