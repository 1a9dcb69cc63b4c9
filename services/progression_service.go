package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/vortexplay/arena-server/brackets"
	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/repositories"
)

// ProgressionService advances a tournament once every match of its current
// round has finished. Advancing is idempotent: concurrent attempts for the
// same tournament collapse into one, and the round bump in storage is a
// compare-and-swap, so a round can never be built twice.
type ProgressionService interface {
	// TryAdvance inspects the given round and, if it is the tournament's
	// current round and fully finished, builds the next round or completes
	// the tournament. It reports whether the tournament advanced.
	TryAdvance(ctx context.Context, tournamentID, round int) (bool, error)
}

type progressionService struct {
	tx             TxRunner
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	byeRepo        repositories.ByeRepository
	locks          *KeyedMutex
	hub            live.Broadcaster
	logger         *slog.Logger
	group          singleflight.Group
}

func NewProgressionService(
	tx TxRunner,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	byeRepo repositories.ByeRepository,
	locks *KeyedMutex,
	hub live.Broadcaster,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		byeRepo:        byeRepo,
		locks:          locks,
		hub:            hub,
		logger:         logger,
	}
}

func (s *progressionService) TryAdvance(ctx context.Context, tournamentID, round int) (bool, error) {
	key := fmt.Sprintf("progress:%d:%d", tournamentID, round)
	// The advance is shared by every coalesced caller, so it must not die
	// with whichever request happened to arrive first.
	advanceCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.advance(advanceCtx, tournamentID, round)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *progressionService) advance(ctx context.Context, tournamentID, round int) (bool, error) {
	unlock := s.locks.Lock(tournamentKey(tournamentID))
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	if t.CurrentRound != round {
		return false, ErrRoundAlreadyAdvanced
	}

	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, &round, nil)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		// A disputed match holds the whole round until moderation clears it.
		if !m.State.Terminal() || m.State == models.MatchDisputed {
			return false, ErrRoundIncomplete
		}
	}

	switch t.Format {
	case models.FormatSingleElimination, models.FormatDoubleElimination:
		return s.advanceElimination(ctx, t, matches)
	case models.FormatRoundRobin:
		return s.advanceRoundRobin(ctx, t)
	case models.FormatSwiss:
		return s.advanceSwiss(ctx, t, matches)
	default:
		return false, ErrUnsupportedBracketType
	}
}

// advanceElimination merges the round's winners with its recorded byes,
// pairs the survivors lowest seed against next lowest, and either persists
// the next round or crowns the champion.
func (s *progressionService) advanceElimination(ctx context.Context, t *models.Tournament, matches []*models.Match) (bool, error) {
	advancing, err := s.winnerSlots(ctx, matches)
	if err != nil {
		return false, err
	}
	byes, err := s.byeRepo.ListByRound(ctx, t.ID, t.CurrentRound)
	if err != nil {
		return false, err
	}
	for _, b := range byes {
		advancing = append(advancing, brackets.Slot{Seed: b.Seed, ParticipantID: b.ParticipantID})
	}

	if len(advancing) <= 1 {
		var winner *int
		if len(advancing) == 1 {
			winner = &advancing[0].ParticipantID
		}
		return true, s.completeTournament(ctx, t, winner)
	}

	pairs, carry := brackets.NextRoundPairs(advancing)
	nextRound := t.CurrentRound + 1
	cadence := brackets.DefaultCadence(t.StartDate)

	var created []*models.Match
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		number, err := s.matchRepo.MaxMatchNumber(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		for i, pair := range pairs {
			m, err := persistBuiltMatch(ctx, exec, s.matchRepo, t.ID, brackets.BuiltMatch{
				Round:        nextRound,
				IndexInRound: i + 1,
				Position:     models.PositionLabel(nextRound, i+1),
				MatchNumber:  number + i + 1,
				ScheduledAt:  cadence.MatchTime(nextRound, i+1),
				Slots:        pair,
			})
			if err != nil {
				return err
			}
			created = append(created, m)
		}
		if carry != nil {
			if err := s.byeRepo.Create(ctx, exec, &models.RoundBye{
				TournamentID:  t.ID,
				Round:         nextRound,
				ParticipantID: carry.ParticipantID,
				Seed:          carry.Seed,
			}); err != nil {
				return err
			}
		}
		swapped, err := s.tournamentRepo.AdvanceRound(ctx, exec, t.ID, t.CurrentRound, nextRound)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrRoundAlreadyAdvanced
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Info("round advanced",
		slog.Int("tournament_id", t.ID),
		slog.Int("round", nextRound),
		slog.Int("matches", len(created)))
	s.notifyRound(t.ID, nextRound, len(created))
	return true, nil
}

// advanceRoundRobin has the full schedule persisted up front, so advancing
// is just bumping the round pointer until the schedule runs out, then
// ranking by wins.
func (s *progressionService) advanceRoundRobin(ctx context.Context, t *models.Tournament) (bool, error) {
	nextRound := t.CurrentRound + 1
	next, err := s.matchRepo.ListByTournament(ctx, t.ID, &nextRound, nil)
	if err != nil {
		return false, err
	}

	if len(next) > 0 {
		err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			swapped, err := s.tournamentRepo.AdvanceRound(ctx, exec, t.ID, t.CurrentRound, nextRound)
			if err != nil {
				return err
			}
			if !swapped {
				return ErrRoundAlreadyAdvanced
			}
			return nil
		})
		if err != nil {
			return false, err
		}
		s.notifyRound(t.ID, nextRound, len(next))
		return true, nil
	}

	winner, err := s.roundRobinWinner(ctx, t.ID)
	if err != nil {
		return false, err
	}
	return true, s.completeTournament(ctx, t, winner)
}

func (s *progressionService) advanceSwiss(ctx context.Context, t *models.Tournament, matches []*models.Match) (bool, error) {
	// One decided pairing set is all swiss supports; a finished single-round
	// field still gets a ranked winner.
	if t.CurrentRound > 1 {
		return false, brackets.ErrSwissProgressionUnsupported
	}
	advancing, err := s.winnerSlots(ctx, matches)
	if err != nil {
		return false, err
	}
	if len(advancing) == 1 {
		return true, s.completeTournament(ctx, t, &advancing[0].ParticipantID)
	}
	return false, brackets.ErrSwissProgressionUnsupported
}

// winnerSlots collects the winning participant of each completed match as a
// slot carrying the seed it held in that match.
func (s *progressionService) winnerSlots(ctx context.Context, matches []*models.Match) ([]brackets.Slot, error) {
	slots := make([]brackets.Slot, 0, len(matches))
	for _, m := range matches {
		if m.State != models.MatchCompleted || m.WinnerParticipantID == nil {
			continue
		}
		mps, err := s.matchRepo.ListParticipants(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, mp := range mps {
			if mp.ParticipantID != *m.WinnerParticipantID {
				continue
			}
			seed := 0
			if mp.Seed != nil {
				seed = *mp.Seed
			}
			slots = append(slots, brackets.Slot{Seed: seed, ParticipantID: mp.ParticipantID})
		}
	}
	return slots, nil
}

// roundRobinWinner ranks by win count across all matches, ties broken by the
// lowest seed.
func (s *progressionService) roundRobinWinner(ctx context.Context, tournamentID int) (*int, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil, nil)
	if err != nil {
		return nil, err
	}

	type standing struct {
		participantID int
		wins          int
		seed          int
	}
	table := map[int]*standing{}
	for _, m := range matches {
		mps, err := s.matchRepo.ListParticipants(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, mp := range mps {
			st, ok := table[mp.ParticipantID]
			if !ok {
				seed := 0
				if mp.Seed != nil {
					seed = *mp.Seed
				}
				st = &standing{participantID: mp.ParticipantID, seed: seed}
				table[mp.ParticipantID] = st
			}
			if m.WinnerParticipantID != nil && *m.WinnerParticipantID == mp.ParticipantID {
				st.wins++
			}
		}
	}
	if len(table) == 0 {
		return nil, nil
	}

	standings := make([]*standing, 0, len(table))
	for _, st := range table {
		standings = append(standings, st)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].wins != standings[j].wins {
			return standings[i].wins > standings[j].wins
		}
		return standings[i].seed < standings[j].seed
	})
	return &standings[0].participantID, nil
}

func (s *progressionService) completeTournament(ctx context.Context, t *models.Tournament, winner *int) error {
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.Complete(ctx, exec, t.ID, winner)
	})
	if err != nil {
		return err
	}

	s.logger.Info("tournament completed",
		slog.Int("tournament_id", t.ID),
		slog.Any("winner_participant_id", winner))
	s.hub.BroadcastToRoom(live.TournamentRoom(t.ID), live.Event{
		Type: live.EventTournamentNotification,
		Payload: live.TournamentNotificationPayload{
			TournamentID: t.ID,
			Kind:         "tournamentCompleted",
			Message:      fmt.Sprintf("Tournament %q has finished", t.Name),
			Data:         winner,
		},
	})
	return nil
}

func (s *progressionService) notifyRound(tournamentID, round, matchCount int) {
	s.hub.BroadcastToRoom(live.TournamentRoom(tournamentID), live.Event{
		Type: live.EventTournamentNotification,
		Payload: live.TournamentNotificationPayload{
			TournamentID: tournamentID,
			Kind:         "roundStarted",
			Message:      fmt.Sprintf("Round %d is ready: %d matches", round, matchCount),
		},
	})
}
