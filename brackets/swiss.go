package brackets

import (
	"context"
	"errors"

	"github.com/vortexplay/arena-server/models"
)

// ErrSwissProgressionUnsupported is returned when progression is attempted
// past the first round of a swiss tournament. Score-based pairing for later
// rounds is intentionally not implemented; there is no confirmed semantics to
// reproduce yet.
var ErrSwissProgressionUnsupported = errors.New("swiss pairing beyond round 1 is not supported")

type SwissBuilder struct{}

func NewSwissBuilder() Builder {
	return &SwissBuilder{}
}

func (b *SwissBuilder) Name() string {
	return "Swiss"
}

// Build pairs the already shuffled slot list into adjacent pairs for round 1.
// An odd field leaves the last slot with a first-round bye.
func (b *SwissBuilder) Build(ctx context.Context, params GenerateParams) (*Bracket, error) {
	slots := params.Slots
	if len(slots) < 2 {
		return nil, ErrInsufficientParticipants
	}

	bracket := &Bracket{}
	number := params.StartNumber
	index := 0

	for i := 0; i+1 < len(slots); i += 2 {
		index++
		bracket.Matches = append(bracket.Matches, BuiltMatch{
			Round:        1,
			IndexInRound: index,
			Position:     models.PositionLabel(1, index),
			MatchNumber:  number,
			ScheduledAt:  params.Cadence.MatchTime(1, index),
			Slots:        [2]Slot{slots[i], slots[i+1]},
		})
		number++
	}
	if len(slots)%2 != 0 {
		bracket.Byes = append(bracket.Byes, ByeAdvance{Round: 1, Slot: slots[len(slots)-1]})
	}

	return bracket, nil
}
