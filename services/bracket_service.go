package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/vortexplay/arena-server/brackets"
	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/repositories"
)

type BracketService interface {
	// Generate seeds the confirmed participants of an active tournament and
	// persists the first determinable rounds of its bracket. Generation is
	// atomic and happens at most once per tournament.
	Generate(ctx context.Context, tournamentID, actorUserID int) ([]*models.Match, error)
}

type bracketService struct {
	tx             TxRunner
	tournamentRepo repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo      repositories.MatchRepository
	byeRepo        repositories.ByeRepository
	locks          *KeyedMutex
	hub            live.Broadcaster
	logger         *slog.Logger
	// newRand supplies the shuffle source; tests pin it to a fixed seed.
	newRand func() *rand.Rand
}

func NewBracketService(
	tx TxRunner,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	byeRepo repositories.ByeRepository,
	locks *KeyedMutex,
	hub live.Broadcaster,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		byeRepo:         byeRepo,
		locks:           locks,
		hub:             hub,
		logger:          logger,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

func (s *bracketService) Generate(ctx context.Context, tournamentID, actorUserID int) ([]*models.Match, error) {
	unlock := s.locks.Lock(tournamentKey(tournamentID))
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.OrganizerID != actorUserID {
		return nil, ErrForbidden
	}
	if t.Status != models.TournamentActive {
		return nil, ErrTournamentNotActive
	}
	if t.CurrentRound > 0 {
		return nil, ErrBracketAlreadyGenerated
	}

	confirmed := models.ParticipantConfirmed
	participants, err := s.participantRepo.ListByTournament(ctx, tournamentID, &confirmed)
	if err != nil {
		return nil, err
	}

	slots, err := brackets.SeedSlots(participants, t.Format, s.newRand())
	if err != nil {
		if errors.Is(err, brackets.ErrInsufficientParticipants) {
			return nil, ErrInsufficientParticipants
		}
		return nil, err
	}

	builder, err := brackets.BuilderFor(t.Format)
	if err != nil {
		return nil, ErrUnsupportedBracketType
	}

	bracket, err := builder.Build(ctx, brackets.GenerateParams{
		Tournament:  t,
		Slots:       slots,
		Cadence:     brackets.DefaultCadence(t.StartDate),
		StartNumber: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("%s build failed for tournament %d: %w", builder.Name(), tournamentID, err)
	}

	created := make([]*models.Match, 0, len(bracket.Matches))
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, bm := range bracket.Matches {
			m, err := persistBuiltMatch(ctx, exec, s.matchRepo, tournamentID, bm)
			if err != nil {
				return err
			}
			created = append(created, m)
		}
		for _, bye := range bracket.Byes {
			if err := s.byeRepo.Create(ctx, exec, &models.RoundBye{
				TournamentID:  tournamentID,
				Round:         bye.Round,
				ParticipantID: bye.Slot.ParticipantID,
				Seed:          bye.Slot.Seed,
			}); err != nil {
				return err
			}
		}
		swapped, err := s.tournamentRepo.AdvanceRound(ctx, exec, tournamentID, 0, 1)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrBracketAlreadyGenerated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket generated",
		slog.Int("tournament_id", tournamentID),
		slog.String("format", string(t.Format)),
		slog.Int("matches", len(created)),
		slog.Int("byes", len(bracket.Byes)))

	s.hub.BroadcastToRoom(live.TournamentRoom(tournamentID), live.Event{
		Type: live.EventTournamentNotification,
		Payload: live.TournamentNotificationPayload{
			TournamentID: tournamentID,
			Kind:         "bracketGenerated",
			Message:      fmt.Sprintf("Bracket generated: %d matches in round 1", countRound(created, 1)),
		},
	})
	return created, nil
}

// persistBuiltMatch writes a builder-emitted match and its two participant
// rows. Shared by generation and round progression.
func persistBuiltMatch(ctx context.Context, exec repositories.SQLExecutor, matchRepo repositories.MatchRepository, tournamentID int, bm brackets.BuiltMatch) (*models.Match, error) {
	m := &models.Match{
		TournamentID: tournamentID,
		Round:        bm.Round,
		Position:     bm.Position,
		MatchNumber:  bm.MatchNumber,
		Capacity:     2,
		State:        models.MatchScheduled,
		ScheduledAt:  bm.ScheduledAt,
	}
	if err := matchRepo.Create(ctx, exec, m); err != nil {
		return nil, err
	}
	for i, slot := range bm.Slots {
		seed := slot.Seed
		mp := &models.MatchParticipant{
			MatchID:       m.ID,
			ParticipantID: slot.ParticipantID,
			Slot:          i + 1,
			Readiness:     models.ReadinessNotReady,
			Seed:          &seed,
		}
		if err := matchRepo.AddParticipant(ctx, exec, mp); err != nil {
			return nil, err
		}
		m.Participants = append(m.Participants, *mp)
	}
	return m, nil
}

func countRound(matches []*models.Match, round int) int {
	n := 0
	for _, m := range matches {
		if m.Round == round {
			n++
		}
	}
	return n
}
