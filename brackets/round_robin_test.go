package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinMatchCount(t *testing.T) {
	testCases := []struct {
		name           string
		n              int
		expectedTotal  int
		expectedRounds int
	}{
		{"4 participants", 4, 6, 3},
		{"5 participants", 5, 10, 5},
		{"6 participants", 6, 15, 5},
		{"2 participants", 2, 1, 1},
	}

	builder := NewRoundRobinBuilder()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bracket, err := builder.Build(context.Background(), GenerateParams{
				Slots:       realSlots(tc.n, tc.n),
				Cadence:     testCadence(),
				StartNumber: 1,
			})
			require.NoError(t, err)
			require.Len(t, bracket.Matches, tc.expectedTotal)
			assert.Empty(t, bracket.Byes, "round robin never records byes")

			rounds := make(map[int][]BuiltMatch)
			for _, m := range bracket.Matches {
				rounds[m.Round] = append(rounds[m.Round], m)
			}
			assert.Len(t, rounds, tc.expectedRounds)

			maxPerRound := (tc.n + 1) / 2
			for r, ms := range rounds {
				assert.LessOrEqual(t, len(ms), maxPerRound, "round %d", r)

				playing := make(map[int]bool)
				for _, m := range ms {
					for _, s := range m.Slots {
						assert.False(t, playing[s.ParticipantID],
							"participant %d plays twice in round %d", s.ParticipantID, r)
						playing[s.ParticipantID] = true
					}
				}
			}
		})
	}
}

func TestRoundRobinEveryPairMeetsOnce(t *testing.T) {
	builder := NewRoundRobinBuilder()
	bracket, err := builder.Build(context.Background(), GenerateParams{
		Slots:       realSlots(5, 5),
		Cadence:     testCadence(),
		StartNumber: 1,
	})
	require.NoError(t, err)

	met := make(map[[2]int]int)
	for _, m := range bracket.Matches {
		a, b := m.Slots[0].ParticipantID, m.Slots[1].ParticipantID
		if a > b {
			a, b = b, a
		}
		met[[2]int{a, b}]++
	}

	assert.Len(t, met, 10)
	for pair, count := range met {
		assert.Equal(t, 1, count, "pair %v", pair)
	}
}

func TestRoundRobinMatchNumbersStrictlyIncrease(t *testing.T) {
	builder := NewRoundRobinBuilder()
	bracket, err := builder.Build(context.Background(), GenerateParams{
		Slots:       realSlots(6, 6),
		Cadence:     testCadence(),
		StartNumber: 4,
	})
	require.NoError(t, err)

	for i, m := range bracket.Matches {
		assert.Equal(t, 4+i, m.MatchNumber)
	}
}

func TestRoundRobinSchedulePacksRounds(t *testing.T) {
	builder := NewRoundRobinBuilder()
	bracket, err := builder.Build(context.Background(), GenerateParams{
		Slots:       realSlots(4, 4),
		Cadence:     testCadence(),
		StartNumber: 1,
	})
	require.NoError(t, err)

	for _, m := range bracket.Matches {
		expected := testCadence().MatchTime(m.Round, m.IndexInRound)
		assert.Equal(t, expected, m.ScheduledAt)
	}
}
