package storage

import (
	"fmt"

	"novatok-explorer/internal/domain"
)

// DefaultListLimit applies when a caller passes a non-positive limit.
const DefaultListLimit = 50

// ValidateMint checks the fields every store requires on insert.
func ValidateMint(m *domain.MintRecord) error {
	switch {
	case m == nil:
		return ErrInvalidInput
	case m.TxHash == "":
		return fmt.Errorf("%w: tx hash is required", ErrInvalidInput)
	case m.Status != domain.MintStatusPending:
		return fmt.Errorf("%w: new mints must be pending, got %q", ErrInvalidInput, m.Status)
	}
	return nil
}

// ValidateSettlement checks that s moves a mint into a final status.
func ValidateSettlement(s Settlement) error {
	if !s.Status.IsFinal() {
		return fmt.Errorf("%w: settlement status %q is not final", ErrInvalidInput, s.Status)
	}
	return nil
}

// Limit normalizes a caller-provided page size.
func Limit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
