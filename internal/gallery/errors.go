package gallery

import "errors"

// Service errors. Each maps to a distinct API response.
var (
	ErrDemoMode       = errors.New("no contract configured (demo mode)")
	ErrNoWallet       = errors.New("no wallet configured for minting")
	ErrInvalidRequest = errors.New("invalid request")
	ErrWrongNetwork   = errors.New("connected to the wrong network")
)
