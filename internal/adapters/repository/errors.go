package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound               = errors.New("player not found")
	ErrInvalidLimit           = errors.New("invalid limit")
	ErrInsufficientPopulation = errors.New("insufficient population")
	ErrDuplicateMatch         = errors.New("duplicate match")
	ErrStoreUnavailable       = errors.New("store unavailable")
)
