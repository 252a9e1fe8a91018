package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation error")

	// ErrOutOfStock is a validation failure; errors.Is(err, ErrValidation)
	// holds for it as well.
	ErrOutOfStock = fmt.Errorf("%w: out of stock", ErrValidation)
)
