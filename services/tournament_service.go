package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/repositories"
)

type CreateTournamentInput struct {
	Name            string               `json:"name"`
	Description     *string              `json:"description,omitempty"`
	Game            string               `json:"game"`
	Format          models.BracketFormat `json:"format"`
	RegDate         time.Time            `json:"reg_date"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	MaxParticipants int                  `json:"max_participants"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput, organizerID int) (*models.Tournament, error)
	Get(ctx context.Context, id int) (*models.Tournament, error)
	// GetFull loads the tournament with its participants and matches.
	GetFull(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	ChangeStatus(ctx context.Context, id, actorUserID int, to models.TournamentStatus) (*models.Tournament, error)
	// SyncStatusesByDates moves every non-terminal tournament whose clock
	// has passed a phase boundary. Run periodically by the scheduler.
	SyncStatusesByDates(ctx context.Context) error
}

type tournamentService struct {
	tx              TxRunner
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	userRepo        repositories.UserRepository
	hub             live.Broadcaster
	logger          *slog.Logger
	now             func() time.Time
}

func NewTournamentService(
	tx TxRunner,
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	hub live.Broadcaster,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		userRepo:        userRepo,
		hub:             hub,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput, organizerID int) (*models.Tournament, error) {
	if input.RegDate.IsZero() || input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, ErrTournamentDatesRequired
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, ErrInvalidDateRange
	}
	if !input.RegDate.Before(input.StartDate) {
		return nil, ErrInvalidRegDate
	}
	if input.MaxParticipants < 2 {
		return nil, ErrInvalidCapacity
	}
	if !input.Format.Valid() {
		return nil, ErrUnsupportedBracketType
	}

	t := &models.Tournament{
		Name:            input.Name,
		Description:     input.Description,
		Game:            input.Game,
		Format:          input.Format,
		OrganizerID:     organizerID,
		RegDate:         input.RegDate,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Status:          statusForDates(s.now(), input.RegDate, input.StartDate),
		MaxParticipants: input.MaxParticipants,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", t.ID),
		slog.String("name", t.Name),
		slog.String("format", string(t.Format)))
	return t, nil
}

func (s *tournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) GetFull(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gctx, id, nil)
		if err != nil {
			return err
		}
		t.Participants = make([]models.Participant, 0, len(participants))
		for _, p := range participants {
			t.Participants = append(t.Participants, *p)
		}
		return nil
	})
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gctx, id, nil, nil)
		if err != nil {
			return err
		}
		t.Matches = make([]models.Match, 0, len(matches))
		for _, m := range matches {
			t.Matches = append(t.Matches, *m)
		}
		return nil
	})
	g.Go(func() error {
		organizer, err := s.userRepo.GetByID(gctx, t.OrganizerID)
		if err != nil {
			return err
		}
		t.Organizer = organizer
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	return s.tournamentRepo.List(ctx, status)
}

// ChangeStatus applies an organizer-driven transition. Only forward phase
// moves and cancellation are allowed; completion belongs to progression.
func (s *tournamentService) ChangeStatus(ctx context.Context, id, actorUserID int, to models.TournamentStatus) (*models.Tournament, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OrganizerID != actorUserID {
		return nil, ErrForbidden
	}
	if !statusTransitionAllowed(t.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		swapped, err := s.tournamentRepo.UpdateStatus(ctx, exec, id, t.Status, to)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrInvalidStatusTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.Status = to

	s.notifyStatus(t)
	return t, nil
}

func (s *tournamentService) SyncStatusesByDates(ctx context.Context) error {
	tournaments, err := s.tournamentRepo.ListNonTerminal(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, t := range tournaments {
		desired := statusForDates(now, t.RegDate, t.StartDate)
		if desired == t.Status || !statusTransitionAllowed(t.Status, desired) {
			continue
		}

		from, to := t.Status, desired
		err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			// Lost races with a concurrent manual change are fine.
			_, err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, from, to)
			return err
		})
		if err != nil {
			s.logger.Error("status sync failed",
				slog.Int("tournament_id", t.ID),
				slog.Any("error", err))
			continue
		}

		t.Status = to
		s.logger.Info("tournament status synced",
			slog.Int("tournament_id", t.ID),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		s.notifyStatus(t)
	}
	return nil
}

func (s *tournamentService) notifyStatus(t *models.Tournament) {
	s.hub.BroadcastToRoom(live.TournamentRoom(t.ID), live.Event{
		Type: live.EventTournamentNotification,
		Payload: live.TournamentNotificationPayload{
			TournamentID: t.ID,
			Kind:         "statusChanged",
			Message:      "Tournament is now " + string(t.Status),
			Data:         t.Status,
		},
	})
}

// statusForDates derives the phase a tournament should be in from the clock
// alone. Completion is never derived; it is decided by progression.
func statusForDates(now, regDate, startDate time.Time) models.TournamentStatus {
	switch {
	case !now.Before(startDate):
		return models.TournamentActive
	case !now.Before(regDate):
		return models.TournamentRegistration
	default:
		return models.TournamentSoon
	}
}

func statusTransitionAllowed(from, to models.TournamentStatus) bool {
	if to == models.TournamentCanceled {
		return from == models.TournamentSoon ||
			from == models.TournamentRegistration ||
			from == models.TournamentActive
	}
	switch from {
	case models.TournamentSoon:
		return to == models.TournamentRegistration || to == models.TournamentActive
	case models.TournamentRegistration:
		return to == models.TournamentActive
	default:
		return false
	}
}
