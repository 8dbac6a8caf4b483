package matchmaking

import "errors"

// Sentinel kinds for matchmaking errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)
