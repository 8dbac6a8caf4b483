// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"time"
)

// Rating defaults for a freshly added player.
const (
	InitialRating    = 2200.0
	InitialDeviation = 350.0
	MaxDeviation     = 350.0
)

// Player is a rating subject bound to one external item (an image file name).
type Player struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Rating    float64   `json:"rating"`
	Deviation float64   `json:"deviation"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPlayer returns a player at the initial rating and deviation.
func NewPlayer(id int64, name string) Player {
	return Player{
		ID:        id,
		Name:      name,
		Rating:    InitialRating,
		Deviation: InitialDeviation,
	}
}

// Duel is an unplayed pairing waiting for a judgement.
type Duel struct {
	Home    string `json:"home"`
	HomeID  int64  `json:"home_id"`
	Guest   string `json:"guest"`
	GuestID int64  `json:"guest_id"`
}

// NewDuel pairs home against guest.
func NewDuel(home, guest Player) Duel {
	return Duel{
		Home:    home.Name,
		HomeID:  home.ID,
		Guest:   guest.Name,
		GuestID: guest.ID,
	}
}

// Outcome is the score of the home side: 0 lost, 0.5 draw, 1 won.
type Outcome float64

// Known outcomes.
const (
	HomeLost Outcome = 0
	Draw     Outcome = 0.5
	HomeWon  Outcome = 1
)

// Valid reports whether o is one of the three known outcomes.
func (o Outcome) Valid() bool {
	return o == HomeLost || o == Draw || o == HomeWon
}

// Guest returns the complementary score seen from the guest side.
func (o Outcome) Guest() Outcome {
	return 1 - o
}

// ErrInvalidMatch marks a match that cannot be recorded.
var ErrInvalidMatch = errors.New("invalid match")

// Match is a judged duel. Matches are append-only.
type Match struct {
	ID       string    `json:"id,omitempty"`
	HomeID   int64     `json:"home_id"`
	GuestID  int64     `json:"guest_id"`
	Outcome  Outcome   `json:"won"`
	PlayedAt time.Time `json:"played_at,omitempty"`
}

// Validate checks the participant ids and the outcome.
func (m Match) Validate() error {
	switch {
	case m.HomeID <= 0 || m.GuestID <= 0:
		return errors.Join(ErrInvalidMatch, errors.New("player ids must be positive"))
	case m.HomeID == m.GuestID:
		return errors.Join(ErrInvalidMatch, errors.New("home and guest must differ"))
	case !m.Outcome.Valid():
		return errors.Join(ErrInvalidMatch, errors.New("outcome must be 0, 0.5 or 1"))
	}
	return nil
}
