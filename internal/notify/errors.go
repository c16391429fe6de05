package notify

import "errors"

var (
	// ErrTokenRejected is returned by a Pusher when the provider reports
	// the token as permanently invalid. Such tokens are pruned.
	ErrTokenRejected = errors.New("notify: push token rejected")

	// ErrDeliveryFailed is returned when no push reached the account.
	ErrDeliveryFailed = errors.New("notify: delivery failed")

	// ErrNoRecipients is returned by Notify when push is enabled but the
	// account has no registered tokens, so nothing was delivered.
	ErrNoRecipients = errors.New("notify: account has no push tokens")
)
