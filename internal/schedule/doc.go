// Package schedule switches plugs on and off at the times users set in
// the app.
//
// Every minute the engine loads the enabled schedules whose start or end
// time is the current local minute on today's weekday. A start applies the
// schedule's action, an end applies the opposite. When several schedules
// for one device are due together, the newest one wins. A device already
// in the target state is not touched, so repeated ticks are harmless.
package schedule
