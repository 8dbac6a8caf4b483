// Package glicko implements the Glicko rating update used to score duels.
//
// A rating carries an uncertainty (deviation). Each judged duel pulls the
// rating toward the observed outcome, weighted by how certain both sides are,
// and shrinks the deviation. Between duels the deviation may grow again with
// elapsed time (decay), capped at MaxDeviation.
package glicko

import "math"

// MaxDeviation is the deviation of a player nothing is known about.
const MaxDeviation = 350.0

const (
	q      = math.Ln10 / 400
	qSq    = q * q
	piSq   = math.Pi * math.Pi
	gCoeff = 3 * qSq / piSq
)

// Rating is a rating snapshot at a point on the rating clock.
type Rating struct {
	Rating    float64
	Deviation float64
	Time      int64
}

// ScoreTerm selects how the observed score enters the rating step.
type ScoreTerm int

const (
	// StandardScore moves the rating by g(RDj)·(s − E).
	StandardScore ScoreTerm = iota
	// LegacyScore moves the rating by g(RDj)·s − E. Earlier deployments of
	// the ranking service used this form; it is kept so stored ratings can be
	// replayed with the same arithmetic.
	LegacyScore
)

// String implements fmt.Stringer.
func (t ScoreTerm) String() string {
	if t == LegacyScore {
		return "legacy"
	}
	return "standard"
}

// g down-weights the influence of an opponent with a high deviation.
func g(deviation float64) float64 {
	return 1 / math.Sqrt(1+gCoeff*deviation*deviation)
}

// expectation is the expected score of a against b.
func expectation(ra, rb, devB float64) float64 {
	return 1 / (1 + math.Exp(-g(devB)*(ra-rb)*q))
}

// decayed grows deviation by c²·t and caps it at MaxDeviation.
func decayed(deviation float64, ticks int64, c float64) float64 {
	rd := math.Sqrt(deviation*deviation + c*c*float64(ticks))
	return math.Min(MaxDeviation, rd)
}

// Update computes the subject's rating after one duel against opponent with
// the standard score term. outcome is the subject's score in [0, 1].
func Update(subject, opponent Rating, outcome float64, now int64, decay float64) Rating {
	return update(subject, opponent, outcome, now, decay, StandardScore)
}

// UpdatePair rates both sides of one duel from the same pre-duel snapshot.
// outcome is the home side's score.
func UpdatePair(home, guest Rating, outcome float64, now int64, decay float64) (Rating, Rating) {
	return Update(home, guest, outcome, now, decay), Update(guest, home, 1-outcome, now, decay)
}

func update(subject, opponent Rating, outcome float64, now int64, decay float64, term ScoreTerm) Rating {
	elapsed := max(0, now-subject.Time)
	rd := decayed(subject.Deviation, elapsed, decay)

	gOpp := g(opponent.Deviation)
	e := expectation(subject.Rating, opponent.Rating, opponent.Deviation)
	dInvSq := qSq * gOpp * gOpp * e * (1 - e)
	variance := 1 / (1/(rd*rd) + dInvSq)

	var step float64
	switch term {
	case LegacyScore:
		step = gOpp*outcome - e
	default:
		step = gOpp * (outcome - e)
	}

	return Rating{
		Rating:    subject.Rating + q*variance*step,
		Deviation: math.Sqrt(variance),
		Time:      now,
	}
}

// Engine binds the tunables of the update: decay per tick and score term.
// The zero value is the standard update without decay.
type Engine struct {
	decay float64
	term  ScoreTerm
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDecayFactor sets c, the per-tick deviation growth. Zero disables decay.
func WithDecayFactor(c float64) Option {
	return func(e *Engine) {
		if c >= 0 {
			e.decay = c
		}
	}
}

// WithScoreTerm selects the score term.
func WithScoreTerm(t ScoreTerm) Option {
	return func(e *Engine) {
		e.term = t
	}
}

// New creates an Engine with configuration options.
func New(opts ...Option) Engine {
	var e Engine
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// DecayFactor returns the configured decay factor.
func (e Engine) DecayFactor() float64 { return e.decay }

// ScoreTerm returns the configured score term.
func (e Engine) ScoreTerm() ScoreTerm { return e.term }

// Update rates subject after one duel against opponent.
func (e Engine) Update(subject, opponent Rating, outcome float64, now int64) Rating {
	return update(subject, opponent, outcome, now, e.decay, e.term)
}

// Pair rates both sides of a duel from one snapshot. outcome is the home score.
func (e Engine) Pair(home, guest Rating, outcome float64, now int64) (Rating, Rating) {
	return e.Update(home, guest, outcome, now), e.Update(guest, home, 1-outcome, now)
}
