package brackets

import (
	"context"
	"time"

	"github.com/vortexplay/arena-server/models"
)

// Cadence controls how built matches are spread over the calendar. The
// reference cadence is one round per day; round robin packs the matches of a
// round with a small offset instead.
type Cadence struct {
	FirstRound    time.Time
	RoundInterval time.Duration
	MatchOffset   time.Duration
}

func DefaultCadence(firstRound time.Time) Cadence {
	return Cadence{
		FirstRound:    firstRound,
		RoundInterval: 24 * time.Hour,
		MatchOffset:   30 * time.Minute,
	}
}

func (c Cadence) MatchTime(round, indexInRound int) time.Time {
	return c.FirstRound.
		Add(time.Duration(round-1) * c.RoundInterval).
		Add(time.Duration(indexInRound-1) * c.MatchOffset)
}

// BuiltMatch is a match the builder wants persisted. Both slots are real
// participants; placeholder matches are never emitted, subsequent rounds come
// from progression.
type BuiltMatch struct {
	Round        int
	IndexInRound int
	Position     string
	MatchNumber  int
	ScheduledAt  time.Time
	Slots        [2]Slot
}

// Bracket is the result of one generation pass: the matches of the rounds the
// builder could fully determine, plus the bye-advances out of them.
type Bracket struct {
	Matches []BuiltMatch
	Byes    []ByeAdvance
}

type GenerateParams struct {
	Tournament *models.Tournament
	Slots      []Slot
	Cadence    Cadence
	// StartNumber seeds the tournament-wide strictly increasing match
	// number sequence. Generation starts at 1; progression continues it.
	StartNumber int
}

type Builder interface {
	Build(ctx context.Context, params GenerateParams) (*Bracket, error)

	Name() string
}

// BuilderFor resolves the builder for a format. Double elimination is
// deliberately reduced to single elimination; a true loser's bracket is a
// pending product decision.
func BuilderFor(format models.BracketFormat) (Builder, error) {
	switch format {
	case models.FormatSingleElimination, models.FormatDoubleElimination:
		return NewSingleEliminationBuilder(), nil
	case models.FormatRoundRobin:
		return NewRoundRobinBuilder(), nil
	case models.FormatSwiss:
		return NewSwissBuilder(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
