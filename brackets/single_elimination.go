package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/vortexplay/arena-server/models"
)

type SingleEliminationBuilder struct{}

func NewSingleEliminationBuilder() Builder {
	return &SingleEliminationBuilder{}
}

func (b *SingleEliminationBuilder) Name() string {
	return "SingleElimination"
}

// Build emits the first round of a single elimination bracket. Slot i is
// paired against slot M+1-i, the standard convention that puts the synthetic
// bye seeds opposite the lowest real seeds. A pairing of two real slots
// becomes a match; a pairing with exactly one bye advances the real slot
// without a match; a double bye is dropped. Later rounds are derived from
// winners by progression, so no placeholder matches exist.
func (b *SingleEliminationBuilder) Build(ctx context.Context, params GenerateParams) (*Bracket, error) {
	slots := params.Slots
	m := len(slots)
	if m < 2 {
		return nil, ErrInsufficientParticipants
	}
	if m&(m-1) != 0 {
		return nil, fmt.Errorf("single elimination requires a power-of-two slot list, got %d", m)
	}

	bracket := &Bracket{}
	number := params.StartNumber
	index := 0
	outgoing := 0

	for i := 0; i < m/2; i++ {
		s1, s2 := slots[i], slots[m-1-i]

		switch {
		case s1.Bye && s2.Bye:
			// Transient double bye, drops the pair entirely.
			continue
		case s2.Bye:
			bracket.Byes = append(bracket.Byes, ByeAdvance{Round: 1, Slot: s1})
			outgoing++
		case s1.Bye:
			bracket.Byes = append(bracket.Byes, ByeAdvance{Round: 1, Slot: s2})
			outgoing++
		default:
			index++
			bracket.Matches = append(bracket.Matches, BuiltMatch{
				Round:        1,
				IndexInRound: index,
				Position:     models.PositionLabel(1, index),
				MatchNumber:  number,
				ScheduledAt:  params.Cadence.MatchTime(1, index),
				Slots:        [2]Slot{s1, s2},
			})
			number++
			outgoing++
		}
	}

	if outgoing > 1 && outgoing%2 != 0 {
		return nil, fmt.Errorf("round 1 would leave an odd slot list (%d) for round 2", outgoing)
	}

	return bracket, nil
}

// NextRoundPairs pairs the surviving slots of a completed round ascending by
// seed, lowest remaining seed against the next lowest. A leftover slot on an
// odd-length list is returned as a carry so the caller can record it as a bye
// rather than silently dropping it.
func NextRoundPairs(slots []Slot) (pairs [][2]Slot, carry *Slot) {
	ordered := make([]Slot, len(slots))
	copy(ordered, slots)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seed < ordered[j].Seed })

	for i := 0; i+1 < len(ordered); i += 2 {
		pairs = append(pairs, [2]Slot{ordered[i], ordered[i+1]})
	}
	if len(ordered)%2 != 0 {
		last := ordered[len(ordered)-1]
		carry = &last
	}
	return pairs, carry
}
