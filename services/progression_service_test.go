package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexplay/arena-server/brackets"
	"github.com/vortexplay/arena-server/models"
)

// playMatch walks one generated match from scheduled to completed with the
// given winner. Completing it triggers progression as a side effect.
func playMatch(t *testing.T, f *fixture, m *models.Match, winnerParticipantID int) {
	t.Helper()

	mps, err := f.matches.ListParticipants(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, mps, 2)

	for _, mp := range mps {
		p, err := f.participants.GetByID(context.Background(), mp.ParticipantID)
		require.NoError(t, err)
		_, err = f.matchSvc.SetReady(context.Background(), m.ID, p.UserID, true)
		require.NoError(t, err)
	}

	starter, err := f.participants.GetByID(context.Background(), mps[0].ParticipantID)
	require.NoError(t, err)
	_, err = f.matchSvc.Start(context.Background(), m.ID, starter.UserID)
	require.NoError(t, err)

	winner := winnerParticipantID
	_, err = f.matchSvc.End(context.Background(), m.ID, starter.UserID, EndMatchInput{
		Outcome:             models.OutcomePlayer1Win,
		WinnerParticipantID: &winner,
	})
	require.NoError(t, err)
}

func TestSingleEliminationFullRunWithBye(t *testing.T) {
	f := newFixture()
	tournament, participants := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 3)

	matches, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)
	// Three players pad to four slots: seed 1 gets the bye, seeds 2 and 3
	// play the only first-round match.
	require.Len(t, matches, 1)
	assert.Equal(t, "R1-M1", matches[0].Position)

	byes, err := f.byes.ListByRound(context.Background(), tournament.ID, 1)
	require.NoError(t, err)
	require.Len(t, byes, 1)
	assert.Equal(t, participants[0].ID, byes[0].ParticipantID)

	// Seed 2 wins round 1; progression pairs them against the bye holder.
	playMatch(t, f, matches[0], participants[1].ID)

	stored, err := f.tournaments.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentRound)

	round2 := 2
	finals, err := f.matchSvc.ListByTournament(context.Background(), tournament.ID, &round2)
	require.NoError(t, err)
	require.Len(t, finals, 1)
	assert.Equal(t, "R2-M1", finals[0].Position)
	assert.Equal(t, 2, finals[0].MatchNumber, "numbering continues across rounds")

	mps, err := f.matches.ListParticipants(context.Background(), finals[0].ID)
	require.NoError(t, err)
	ids := []int{mps[0].ParticipantID, mps[1].ParticipantID}
	assert.ElementsMatch(t, []int{participants[0].ID, participants[1].ID}, ids)

	// The final decides the champion.
	playMatch(t, f, finals[0], participants[0].ID)

	stored, err = f.tournaments.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, participants[0].ID, *stored.WinnerID)
}

func TestTryAdvanceRejectsUnfinishedRound(t *testing.T) {
	f := newFixture()
	tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 4)

	_, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)

	_, err = f.progressionSvc.TryAdvance(context.Background(), tournament.ID, 1)
	assert.ErrorIs(t, err, ErrRoundIncomplete)
}

func TestTryAdvanceRejectsStaleRound(t *testing.T) {
	f := newFixture()
	tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 4)

	_, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)

	_, err = f.progressionSvc.TryAdvance(context.Background(), tournament.ID, 0)
	assert.ErrorIs(t, err, ErrRoundAlreadyAdvanced)
}

func TestTryAdvanceSurvivesCallerCancellation(t *testing.T) {
	f := newFixture()
	tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 2)

	matches, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	m := matches[0]

	// Finish the round directly in storage so the advance has work to do.
	require.NoError(t, f.matches.ForceState(context.Background(), nil, m.ID, models.MatchOngoing))
	mps, err := f.matches.ListParticipants(context.Background(), m.ID)
	require.NoError(t, err)
	winner := mps[0].ParticipantID
	swapped, err := f.matches.End(context.Background(), nil, m.ID, time.Now(), models.OutcomePlayer1Win, &winner)
	require.NoError(t, err)
	require.True(t, swapped)

	// The triggering request may be gone by the time the shared advance
	// runs; the round boundary must not be left hanging because of it.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	advanced, err := f.progressionSvc.TryAdvance(cancelled, tournament.ID, 1)
	require.NoError(t, err)
	assert.True(t, advanced)

	got, err := f.tournaments.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, got.Status)
}

func TestDisputedMatchBlocksProgression(t *testing.T) {
	f := newFixture()
	tournament, participants := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 2)

	matches, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	_, err = f.matchSvc.ReportDispute(context.Background(), matches[0].ID, participants[0].UserID, DisputeInput{
		Category:    models.DisputeNoShow,
		Description: "opponent never connected",
	})
	require.NoError(t, err)

	_, err = f.progressionSvc.TryAdvance(context.Background(), tournament.ID, 1)
	assert.ErrorIs(t, err, ErrRoundIncomplete)
}

func TestRoundRobinAdvancesThroughScheduleAndRanks(t *testing.T) {
	f := newFixture()
	tournament, participants := f.seedTournament(models.FormatRoundRobin, models.TournamentActive, 3)

	matches, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)
	// Three players, every pair once: three matches over three rounds.
	require.Len(t, matches, 3)

	for round := 1; round <= 3; round++ {
		r := round
		roundMatches, err := f.matchSvc.ListByTournament(context.Background(), tournament.ID, &r)
		require.NoError(t, err)
		require.Len(t, roundMatches, 1)

		// Lower participant id wins every time, leaving seed 1 with the
		// best record.
		mps, err := f.matches.ListParticipants(context.Background(), roundMatches[0].ID)
		require.NoError(t, err)
		winner := mps[0].ParticipantID
		if mps[1].ParticipantID < winner {
			winner = mps[1].ParticipantID
		}
		playMatch(t, f, roundMatches[0], winner)
	}

	stored, err := f.tournaments.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, stored.Status)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, participants[0].ID, *stored.WinnerID)
}

func TestSwissStopsAfterRoundOne(t *testing.T) {
	f := newFixture()
	tournament, participants := f.seedTournament(models.FormatSwiss, models.TournamentActive, 4)

	matches, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	playMatch(t, f, matches[0], participants[0].ID)
	playMatch(t, f, matches[1], participants[2].ID)

	// Two survivors need a second pairing, which swiss does not define yet.
	_, err = f.progressionSvc.TryAdvance(context.Background(), tournament.ID, 1)
	assert.ErrorIs(t, err, brackets.ErrSwissProgressionUnsupported)

	stored, err := f.tournaments.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentRound)
	assert.Equal(t, models.TournamentActive, stored.Status)
}

func TestGenerateRejectsSecondBracket(t *testing.T) {
	f := newFixture()
	tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 4)

	_, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	require.NoError(t, err)

	_, err = f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
	assert.ErrorIs(t, err, ErrBracketAlreadyGenerated)
}

func TestGenerateGuards(t *testing.T) {
	f := newFixture()

	t.Run("organizer only", func(t *testing.T) {
		tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 4)
		_, err := f.bracketSvc.Generate(context.Background(), tournament.ID, 9999)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("active only", func(t *testing.T) {
		tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentRegistration, 4)
		_, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
		assert.ErrorIs(t, err, ErrTournamentNotActive)
	})

	t.Run("minimum field", func(t *testing.T) {
		tournament, _ := f.seedTournament(models.FormatSingleElimination, models.TournamentActive, 1)
		_, err := f.bracketSvc.Generate(context.Background(), tournament.ID, tournament.OrganizerID)
		assert.ErrorIs(t, err, ErrInsufficientParticipants)
	})
}
