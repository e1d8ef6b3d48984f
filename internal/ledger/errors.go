package ledger

import "errors"

var (
	// ErrInsufficientQuantity is returned in strict mode when a disposal
	// exceeds the quantity held. Nothing is mutated when it is returned.
	ErrInsufficientQuantity = errors.New("insufficient quantity held")

	// ErrInvalidRatio is returned when a split ratio is not positive.
	ErrInvalidRatio = errors.New("split ratio must be positive")
)
