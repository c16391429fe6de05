// Package provisioning tracks DigiPlugs that announced themselves on the
// provisioning topic and lets an account claim one after the user presses
// the plug's button.
//
// The flow is:
//
//	digihome/provisioning/online   -> Tracker.Online    (5 minute window opens)
//	digihome/provisioning/confirm  -> Tracker.Confirm
//	POST /api/v1/devices/claim     -> Claimer.Claim     (device row created)
//
// Unclaimed entries live only in memory; a restart forgets them and the
// plug announces itself again.
package provisioning
