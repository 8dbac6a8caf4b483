package simulation

import "errors"

// Sentinel errors.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrUnrankedName     = errors.New("name does not encode a rank")
	ErrEmptyLeaderboard = errors.New("empty leaderboard")
	ErrServer           = errors.New("server rejected request")
)
