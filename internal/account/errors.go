package account

import "errors"

var (
	// ErrAccountNotFound is returned when an account id does not exist.
	ErrAccountNotFound = errors.New("account: not found")

	// ErrAccountExists is returned when creating an account whose id is taken.
	ErrAccountExists = errors.New("account: already exists")

	// ErrInvalidTariffTier is returned for a tier outside the known set.
	ErrInvalidTariffTier = errors.New("account: invalid tariff tier")

	// ErrInvalidToken is returned for an empty push token.
	ErrInvalidToken = errors.New("account: invalid push token")
)
