package brackets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vortexplay/arena-server/models"
)

func realSlots(n int, padTo int) []Slot {
	slots := make([]Slot, 0, padTo)
	for seed := 1; seed <= n; seed++ {
		slots = append(slots, Slot{Seed: seed, ParticipantID: seed * 100})
	}
	for seed := n + 1; seed <= padTo; seed++ {
		slots = append(slots, Slot{Seed: seed, Bye: true})
	}
	return slots
}

func testCadence() Cadence {
	return DefaultCadence(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))
}

func TestSingleEliminationFirstRound(t *testing.T) {
	testCases := []struct {
		name            string
		n               int
		padTo           int
		expectedMatches int
		expectedByes    int
		byeSeeds        []int
	}{
		{
			name: "2 participants", n: 2, padTo: 2,
			expectedMatches: 1, expectedByes: 0,
		},
		{
			name: "3 participants pad to 4", n: 3, padTo: 4,
			expectedMatches: 1, expectedByes: 1, byeSeeds: []int{1},
		},
		{
			name: "5 participants pad to 8", n: 5, padTo: 8,
			expectedMatches: 1, expectedByes: 3, byeSeeds: []int{1, 2, 3},
		},
		{
			name: "8 participants full field", n: 8, padTo: 8,
			expectedMatches: 4, expectedByes: 0,
		},
	}

	builder := NewSingleEliminationBuilder()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bracket, err := builder.Build(context.Background(), GenerateParams{
				Slots:       realSlots(tc.n, tc.padTo),
				Cadence:     testCadence(),
				StartNumber: 1,
			})
			require.NoError(t, err)

			assert.Len(t, bracket.Matches, tc.expectedMatches)
			assert.Len(t, bracket.Byes, tc.expectedByes)

			// Byes absorb the highest synthetic seeds, so the lowest real
			// seeds advance without a match.
			for i, seed := range tc.byeSeeds {
				assert.Equal(t, seed, bracket.Byes[i].Slot.Seed)
				assert.Equal(t, 1, bracket.Byes[i].Round)
			}

			for i, m := range bracket.Matches {
				assert.Equal(t, 1, m.Round)
				assert.Equal(t, i+1, m.MatchNumber, "match numbers start at 1 and increase")
				assert.Equal(t, models.PositionLabel(1, i+1), m.Position)
				assert.False(t, m.Slots[0].Bye)
				assert.False(t, m.Slots[1].Bye)
			}
		})
	}
}

func TestSingleEliminationPairsFirstAgainstLast(t *testing.T) {
	builder := NewSingleEliminationBuilder()
	bracket, err := builder.Build(context.Background(), GenerateParams{
		Slots:       realSlots(8, 8),
		Cadence:     testCadence(),
		StartNumber: 1,
	})
	require.NoError(t, err)
	require.Len(t, bracket.Matches, 4)

	expectedPairs := [][2]int{{1, 8}, {2, 7}, {3, 6}, {4, 5}}
	for i, m := range bracket.Matches {
		assert.Equal(t, expectedPairs[i][0], m.Slots[0].Seed)
		assert.Equal(t, expectedPairs[i][1], m.Slots[1].Seed)
	}
}

func TestSingleEliminationRejectsOddSlotList(t *testing.T) {
	builder := NewSingleEliminationBuilder()
	_, err := builder.Build(context.Background(), GenerateParams{
		Slots:       realSlots(3, 3),
		Cadence:     testCadence(),
		StartNumber: 1,
	})
	assert.Error(t, err)
}

func TestSingleEliminationFullProgressionMatchCount(t *testing.T) {
	// For any field size, playing the bracket to the end produces exactly
	// N-1 real matches: byes never materialize.
	for _, n := range []int{2, 3, 5, 6, 8, 11, 16} {
		builder := NewSingleEliminationBuilder()
		bracket, err := builder.Build(context.Background(), GenerateParams{
			Slots:       realSlots(n, BracketSize(n)),
			Cadence:     testCadence(),
			StartNumber: 1,
		})
		require.NoError(t, err)

		total := len(bracket.Matches)

		// Survivors of round 1: one winner per match plus every bye.
		survivors := make([]Slot, 0)
		for _, m := range bracket.Matches {
			survivors = append(survivors, m.Slots[0]) // lower seed wins
		}
		for _, b := range bracket.Byes {
			survivors = append(survivors, b.Slot)
		}

		for len(survivors) > 1 {
			pairs, carry := NextRoundPairs(survivors)
			require.Nil(t, carry, "power-of-two field never leaves a carry")
			total += len(pairs)
			next := make([]Slot, 0, len(pairs))
			for _, p := range pairs {
				next = append(next, p[0])
			}
			survivors = next
		}

		assert.Equal(t, n-1, total, "n=%d", n)
		assert.Equal(t, 1, survivors[0].Seed, "lowest seed wins it all when favorites win")
	}
}

func TestNextRoundPairs(t *testing.T) {
	slots := []Slot{
		{Seed: 7, ParticipantID: 700},
		{Seed: 1, ParticipantID: 100},
		{Seed: 4, ParticipantID: 400},
		{Seed: 2, ParticipantID: 200},
	}

	pairs, carry := NextRoundPairs(slots)
	require.Nil(t, carry)
	require.Len(t, pairs, 2)

	// Lowest remaining seed pairs with the next lowest.
	assert.Equal(t, 1, pairs[0][0].Seed)
	assert.Equal(t, 2, pairs[0][1].Seed)
	assert.Equal(t, 4, pairs[1][0].Seed)
	assert.Equal(t, 7, pairs[1][1].Seed)
}

func TestNextRoundPairsCarriesOddSlot(t *testing.T) {
	slots := []Slot{{Seed: 3}, {Seed: 1}, {Seed: 2}}

	pairs, carry := NextRoundPairs(slots)
	require.Len(t, pairs, 1)
	require.NotNil(t, carry)
	assert.Equal(t, 3, carry.Seed)
}
