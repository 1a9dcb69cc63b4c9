package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/repositories"
)

type ParticipantService interface {
	// Register enrolls a user while registration is open. An explicit seed
	// is optional and must be unique within the tournament.
	Register(ctx context.Context, tournamentID, userID int, seed *int) (*models.Participant, error)
	Confirm(ctx context.Context, participantID, actorUserID int) (*models.Participant, error)
	Withdraw(ctx context.Context, participantID, actorUserID int) (*models.Participant, error)
	Disqualify(ctx context.Context, participantID, actorUserID int) (*models.Participant, error)
	List(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error)
}

type participantService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	locks           *KeyedMutex
	hub             live.Broadcaster
	logger          *slog.Logger
}

func NewParticipantService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	locks *KeyedMutex,
	hub live.Broadcaster,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		locks:           locks,
		hub:             hub,
		logger:          logger,
	}
}

func (s *participantService) Register(ctx context.Context, tournamentID, userID int, seed *int) (*models.Participant, error) {
	unlock := s.locks.Lock(tournamentKey(tournamentID))
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.Status != models.TournamentRegistration {
		return nil, ErrRegistrationNotOpen
	}

	existing, err := s.participantRepo.ListByTournament(ctx, tournamentID, nil)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, p := range existing {
		if p.Status == models.ParticipantRegistered || p.Status == models.ParticipantConfirmed {
			active++
		}
	}
	if active >= t.MaxParticipants {
		return nil, ErrTournamentFull
	}

	p := &models.Participant{
		UserID:       userID,
		TournamentID: tournamentID,
		Status:       models.ParticipantRegistered,
		Seed:         seed,
	}
	if err := s.participantRepo.Create(ctx, p); err != nil {
		switch {
		case errors.Is(err, repositories.ErrSeedConflict):
			return nil, ErrSeedTaken
		case errors.Is(err, repositories.ErrParticipantConflict):
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}

	s.logger.Info("participant registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int("user_id", userID),
		slog.Int("participant_id", p.ID))
	return p, nil
}

func (s *participantService) Confirm(ctx context.Context, participantID, actorUserID int) (*models.Participant, error) {
	return s.changeStatus(ctx, participantID, actorUserID, models.ParticipantConfirmed)
}

func (s *participantService) Withdraw(ctx context.Context, participantID, actorUserID int) (*models.Participant, error) {
	return s.changeStatus(ctx, participantID, actorUserID, models.ParticipantWithdrawn)
}

func (s *participantService) Disqualify(ctx context.Context, participantID, actorUserID int) (*models.Participant, error) {
	return s.changeStatus(ctx, participantID, actorUserID, models.ParticipantDisqualified)
}

func (s *participantService) List(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	return s.participantRepo.ListByTournament(ctx, tournamentID, status)
}

// changeStatus enforces who may move a registration where. Confirmation and
// disqualification belong to the organizer; withdrawing is the player's own
// call and only before the bracket exists.
func (s *participantService) changeStatus(ctx context.Context, participantID, actorUserID int, to models.ParticipantStatus) (*models.Participant, error) {
	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(tournamentKey(p.TournamentID))
	defer unlock()

	t, err := s.tournamentRepo.GetByID(ctx, p.TournamentID)
	if err != nil {
		return nil, err
	}

	switch to {
	case models.ParticipantConfirmed:
		if actorUserID != t.OrganizerID {
			return nil, ErrForbidden
		}
		if p.Status != models.ParticipantRegistered {
			return nil, ErrInvalidParticipantStatus
		}
	case models.ParticipantWithdrawn:
		if actorUserID != p.UserID && actorUserID != t.OrganizerID {
			return nil, ErrForbidden
		}
		if p.Status != models.ParticipantRegistered && p.Status != models.ParticipantConfirmed {
			return nil, ErrInvalidParticipantStatus
		}
		if t.CurrentRound > 0 {
			return nil, ErrBracketAlreadyGenerated
		}
	case models.ParticipantDisqualified:
		if actorUserID != t.OrganizerID {
			return nil, ErrForbidden
		}
		if p.Status == models.ParticipantWithdrawn || p.Status == models.ParticipantDisqualified {
			return nil, ErrInvalidParticipantStatus
		}
	default:
		return nil, ErrInvalidParticipantStatus
	}

	if err := s.participantRepo.UpdateStatus(ctx, participantID, to); err != nil {
		return nil, err
	}
	p.Status = to

	s.hub.BroadcastToRoom(live.TournamentRoom(t.ID), live.Event{
		Type: live.EventTournamentNotification,
		Payload: live.TournamentNotificationPayload{
			TournamentID: t.ID,
			Kind:         "participantStatusChanged",
			Message:      "Participant status is now " + string(to),
			Data:         p,
		},
	})
	return p, nil
}
