package app

import (
	"errors"

	"github.com/okian/duelrank/internal/domain/model"
)

// Sentinel error kinds returned by the Collection.
var (
	// ErrInvalidMatch marks a submission with a bad outcome or participants.
	ErrInvalidMatch = model.ErrInvalidMatch
	// ErrBackpressure is returned when the match queue is full.
	ErrBackpressure = errors.New("match queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("collection closed")
)
