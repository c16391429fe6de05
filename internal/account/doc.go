// Package account stores the per-user settings the core acts on: push
// notification tokens, the monthly budget in Rupiah, the electricity
// tariff tier, and the month the last budget warning was sent.
//
// Credentials and profile management live in the account service; this
// package only reads and updates the fields above.
package account
