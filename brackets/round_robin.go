package brackets

import (
	"context"

	"github.com/vortexplay/arena-server/models"
)

type RoundRobinBuilder struct{}

func NewRoundRobinBuilder() Builder {
	return &RoundRobinBuilder{}
}

func (b *RoundRobinBuilder) Name() string {
	return "RoundRobin"
}

// Build creates one match for every unordered pair of participants,
// N*(N-1)/2 in total, distributed with the circle method: one slot stays
// fixed while the rest rotate, so each round holds at most ceil(N/2)
// non-overlapping matches and no participant plays twice in a round. Matches
// of the same round share the round's day with a small offset between them.
func (b *RoundRobinBuilder) Build(ctx context.Context, params GenerateParams) (*Bracket, error) {
	slots := params.Slots
	n := len(slots)
	if n < 2 {
		return nil, ErrInsufficientParticipants
	}

	// The rotation needs an even circle; an odd field gets a phantom slot
	// whose pairings mean "sits out this round". The phantom is purely
	// internal and produces neither matches nor bye records.
	circle := make([]Slot, n)
	copy(circle, slots)
	if n%2 != 0 {
		circle = append(circle, Slot{Bye: true})
	}

	size := len(circle)
	rounds := size - 1
	number := params.StartNumber
	bracket := &Bracket{}

	for r := 1; r <= rounds; r++ {
		index := 0
		for i := 0; i < size/2; i++ {
			s1 := circle[i]
			s2 := circle[size-1-i]
			if s1.Bye || s2.Bye {
				continue
			}
			index++
			bracket.Matches = append(bracket.Matches, BuiltMatch{
				Round:        r,
				IndexInRound: index,
				Position:     models.PositionLabel(r, index),
				MatchNumber:  number,
				ScheduledAt:  params.Cadence.MatchTime(r, index),
				Slots:        [2]Slot{s1, s2},
			})
			number++
		}

		// Rotate everything but the first slot one step clockwise.
		last := circle[size-1]
		copy(circle[2:], circle[1:size-1])
		circle[1] = last
	}

	return bracket, nil
}
