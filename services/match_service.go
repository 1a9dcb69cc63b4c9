package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vortexplay/arena-server/brackets"
	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/repositories"
)

type EndMatchInput struct {
	Outcome             models.MatchOutcome `json:"outcome"`
	WinnerParticipantID *int                `json:"winner_participant_id,omitempty"`
	// Scores maps participant id to their final score, recorded alongside
	// the result.
	Scores map[int]int `json:"scores,omitempty"`
}

type DisputeInput struct {
	Category     models.DisputeCategory `json:"category"`
	Description  string                 `json:"description"`
	EvidenceKeys []string               `json:"evidence_keys,omitempty"`
}

type MatchService interface {
	Get(ctx context.Context, matchID int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int) ([]*models.Match, error)

	Join(ctx context.Context, matchID, userID int) (*models.Match, error)
	SetReady(ctx context.Context, matchID, userID int, ready bool) (*models.Match, error)
	Start(ctx context.Context, matchID, userID int) (*models.Match, error)
	End(ctx context.Context, matchID, userID int, input EndMatchInput) (*models.Match, error)
	ReportDispute(ctx context.Context, matchID, userID int, input DisputeInput) (*models.Dispute, error)
	SendMessage(ctx context.Context, matchID, userID int, text string) (*models.MatchMessage, error)
}

type matchService struct {
	tx              TxRunner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	disputeRepo     repositories.DisputeRepository
	messageRepo     repositories.MessageRepository
	locks           *KeyedMutex
	hub             live.Broadcaster
	progression     ProgressionService
	logger          *slog.Logger
}

func NewMatchService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	disputeRepo repositories.DisputeRepository,
	messageRepo repositories.MessageRepository,
	locks *KeyedMutex,
	hub live.Broadcaster,
	progression ProgressionService,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		disputeRepo:     disputeRepo,
		messageRepo:     messageRepo,
		locks:           locks,
		hub:             hub,
		progression:     progression,
		logger:          logger,
	}
}

func (s *matchService) Get(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.matchRepo.GetWithParticipants(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}
	if m.Messages, err = s.messageRepo.ListByMatch(ctx, matchID); err != nil {
		return nil, err
	}
	if m.Disputes, err = s.disputeRepo.ListByMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int, round *int) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, round, nil)
}

// Join adds the acting user's tournament participant to a scheduled match
// that still has room. The participant set is immutable once the match
// leaves scheduled.
func (s *matchService) Join(ctx context.Context, matchID, userID int) (*models.Match, error) {
	unlock := s.locks.Lock(matchKey(matchID))
	defer unlock()

	m, err := s.matchRepo.GetWithParticipants(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}
	if m.State != models.MatchScheduled {
		return nil, ErrMatchNotJoinable
	}
	if len(m.Participants) >= m.Capacity {
		return nil, ErrMatchFull
	}

	participant, err := s.participantFor(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	if m.HasParticipant(participant.ID) {
		return nil, ErrAlreadyJoined
	}

	mp := &models.MatchParticipant{
		MatchID:       matchID,
		ParticipantID: participant.ID,
		Slot:          len(m.Participants) + 1,
		Readiness:     models.ReadinessNotReady,
		Seed:          participant.Seed,
	}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.AddParticipant(ctx, exec, mp); err != nil {
			if errors.Is(err, repositories.ErrMatchParticipantConflict) {
				return ErrAlreadyJoined
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.Participants = append(m.Participants, *mp)

	s.hub.BroadcastToRoom(live.MatchRoom(matchID), live.Event{
		Type:    live.EventUserJoinedMatch,
		Payload: live.MatchPresencePayload{MatchID: matchID, UserID: userID},
	})
	return m, nil
}

// SetReady toggles the caller's own readiness flag. The call is idempotent:
// setting the same value twice is the same as setting it once. When every
// participant is ready a scheduled match becomes ready; a participant backing
// out of a ready match reverts it to scheduled.
func (s *matchService) SetReady(ctx context.Context, matchID, userID int, ready bool) (*models.Match, error) {
	unlock := s.locks.Lock(matchKey(matchID))
	defer unlock()

	m, err := s.matchRepo.GetWithParticipants(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}
	if m.State != models.MatchScheduled && m.State != models.MatchReady {
		return nil, ErrMatchTerminal
	}

	participant, err := s.participantFor(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(participant.ID) {
		return nil, ErrNotParticipant
	}

	readiness := models.ReadinessNotReady
	if ready {
		readiness = models.ReadinessReady
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.UpdateReadiness(ctx, exec, matchID, participant.ID, readiness); err != nil {
			return err
		}
		for i := range m.Participants {
			if m.Participants[i].ParticipantID == participant.ID {
				m.Participants[i].Readiness = readiness
			}
		}

		switch {
		case m.State == models.MatchScheduled && m.AllReady():
			if _, err := s.matchRepo.UpdateState(ctx, exec, matchID, models.MatchScheduled, models.MatchReady); err != nil {
				return err
			}
			m.State = models.MatchReady
		case m.State == models.MatchReady && !ready:
			if _, err := s.matchRepo.UpdateState(ctx, exec, matchID, models.MatchReady, models.MatchScheduled); err != nil {
				return err
			}
			m.State = models.MatchScheduled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(live.MatchRoom(matchID), live.Event{
		Type: live.EventParticipantReady,
		Payload: live.ParticipantReadyPayload{
			MatchID:       matchID,
			ParticipantID: participant.ID,
			UserID:        userID,
			Readiness:     readiness,
			MatchState:    m.State,
		},
	})
	return m, nil
}

// Start moves a ready match to ongoing. Readiness is re-checked under the
// match lock, and the ready->ongoing swap is conditional in storage, so of
// two racing callers exactly one commits; the other gets a conflict, never a
// double start.
func (s *matchService) Start(ctx context.Context, matchID, userID int) (*models.Match, error) {
	unlock := s.locks.Lock(matchKey(matchID))
	defer unlock()

	m, err := s.matchRepo.GetWithParticipants(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}

	participant, err := s.participantFor(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(participant.ID) {
		return nil, ErrNotParticipant
	}

	switch m.State {
	case models.MatchReady:
	case models.MatchOngoing:
		return nil, ErrMatchAlreadyStarted
	case models.MatchScheduled:
		return nil, ErrNotAllReady
	default:
		return nil, ErrMatchTerminal
	}
	if !m.AllReady() {
		return nil, ErrNotAllReady
	}

	now := time.Now().UTC()
	var sysMsg *models.MatchMessage
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		swapped, err := s.matchRepo.Start(ctx, exec, matchID, now)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrMatchAlreadyStarted
		}
		sysMsg, err = s.appendSystem(ctx, exec, m, fmt.Sprintf("Match %s started", m.Position))
		return err
	})
	if err != nil {
		return nil, err
	}

	m.State = models.MatchOngoing
	m.StartedAt = &now

	s.broadcastMessage(sysMsg)
	s.hub.BroadcastToRoom(live.MatchRoom(matchID), live.Event{
		Type:    live.EventMatchStarted,
		Payload: live.MatchStartedPayload{MatchID: matchID, StartedAt: now.Format(time.RFC3339)},
	})
	return m, nil
}

// End completes an ongoing match with a result classification. Unless the
// result is a no-contest or a draw, the winner must be one of the match's
// participants. The ongoing->completed swap is conditional, mirroring Start.
// Completing the last match of a round triggers progression.
func (s *matchService) End(ctx context.Context, matchID, userID int, input EndMatchInput) (*models.Match, error) {
	unlock := s.locks.Lock(matchKey(matchID))
	defer unlock()

	m, err := s.matchRepo.GetWithParticipants(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}

	participant, err := s.participantFor(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(participant.ID) {
		return nil, ErrNotParticipant
	}

	switch m.State {
	case models.MatchOngoing:
	case models.MatchCompleted:
		return nil, ErrMatchAlreadyEnded
	default:
		return nil, ErrMatchNotOngoing
	}

	if err := validateResult(m, input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var sysMsg *models.MatchMessage
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		swapped, err := s.matchRepo.End(ctx, exec, matchID, now, input.Outcome, input.WinnerParticipantID)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrMatchAlreadyEnded
		}
		for participantID, score := range input.Scores {
			if !m.HasParticipant(participantID) {
				return ErrNotParticipant
			}
			if err := s.matchRepo.UpdateScore(ctx, exec, matchID, participantID, score); err != nil {
				return err
			}
		}
		sysMsg, err = s.appendSystem(ctx, exec, m, fmt.Sprintf("Match %s ended: %s", m.Position, input.Outcome))
		return err
	})
	if err != nil {
		return nil, err
	}

	m.State = models.MatchCompleted
	m.EndedAt = &now
	m.Outcome = &input.Outcome
	m.WinnerParticipantID = input.WinnerParticipantID

	s.broadcastMessage(sysMsg)
	duration := 0.0
	if d := m.Duration(); d != nil {
		duration = d.Seconds()
	}
	s.hub.BroadcastToRoom(live.MatchRoom(matchID), live.Event{
		Type: live.EventMatchEnded,
		Payload: live.MatchEndedPayload{
			MatchID:             matchID,
			Outcome:             input.Outcome,
			WinnerParticipantID: input.WinnerParticipantID,
			DurationSeconds:     duration,
		},
	})

	s.triggerProgression(ctx, m)
	return m, nil
}

// ReportDispute records a dispute and forces the match into disputed,
// overriding any pending transition. Disputed is terminal for the engine;
// moderation takes it from there.
func (s *matchService) ReportDispute(ctx context.Context, matchID, userID int, input DisputeInput) (*models.Dispute, error) {
	unlock := s.locks.Lock(matchKey(matchID))
	defer unlock()

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}
	if m.State == models.MatchDisputed || m.State == models.MatchCancelled {
		return nil, ErrMatchTerminal
	}

	dispute := &models.Dispute{
		MatchID:      matchID,
		ReporterID:   userID,
		Category:     input.Category,
		Description:  input.Description,
		EvidenceKeys: input.EvidenceKeys,
		Status:       models.DisputePending,
	}
	var sysMsg *models.MatchMessage
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.disputeRepo.Create(ctx, exec, dispute); err != nil {
			return err
		}
		if err := s.matchRepo.ForceState(ctx, exec, matchID, models.MatchDisputed); err != nil {
			return err
		}
		sysMsg, err = s.appendSystem(ctx, exec, m, fmt.Sprintf("Dispute reported on match %s", m.Position))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.broadcastMessage(sysMsg)
	s.hub.BroadcastToRoom(live.TournamentRoom(m.TournamentID), live.Event{
		Type: live.EventTournamentNotification,
		Payload: live.TournamentNotificationPayload{
			TournamentID: m.TournamentID,
			Kind:         "disputeReported",
			Message:      fmt.Sprintf("Match %s is under dispute", m.Position),
			Data:         dispute,
		},
	})
	return dispute, nil
}

// SendMessage appends to the match chat under the match lock, so persisted
// order and broadcast order agree.
func (s *matchService) SendMessage(ctx context.Context, matchID, userID int, text string) (*models.MatchMessage, error) {
	unlock := s.locks.Lock(matchKey(matchID))
	defer unlock()

	m, err := s.matchRepo.GetWithParticipants(ctx, matchID)
	if err != nil {
		return nil, s.mapMatchErr(err)
	}
	participant, err := s.participantFor(ctx, m, userID)
	if err != nil {
		return nil, err
	}
	if !m.HasParticipant(participant.ID) {
		return nil, ErrNotParticipant
	}

	msg := &models.MatchMessage{
		MatchID:    matchID,
		SenderType: models.SenderUser,
		SenderID:   &userID,
		Text:       text,
	}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.messageRepo.Create(ctx, exec, msg)
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToRoom(live.MatchRoom(matchID), live.Event{
		Type:    live.EventMatchMessage,
		Payload: live.MatchMessagePayload{Message: *msg},
	})
	return msg, nil
}

// appendSystem persists a system chat line inside the caller's transaction.
// The caller broadcasts the returned message once the transaction commits;
// announcing it earlier would show observers a transition that may roll back.
func (s *matchService) appendSystem(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, text string) (*models.MatchMessage, error) {
	msg := &models.MatchMessage{
		MatchID:    m.ID,
		SenderType: models.SenderSystem,
		Text:       text,
	}
	if err := s.messageRepo.Create(ctx, exec, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *matchService) broadcastMessage(msg *models.MatchMessage) {
	if msg == nil {
		return
	}
	s.hub.BroadcastToRoom(live.MatchRoom(msg.MatchID), live.Event{
		Type:    live.EventMatchMessage,
		Payload: live.MatchMessagePayload{Message: *msg},
	})
}

func (s *matchService) participantFor(ctx context.Context, m *models.Match, userID int) (*models.Participant, error) {
	participant, err := s.participantRepo.FindByUserAndTournament(ctx, userID, m.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	return participant, nil
}

func (s *matchService) triggerProgression(ctx context.Context, m *models.Match) {
	if s.progression == nil {
		return
	}
	_, err := s.progression.TryAdvance(ctx, m.TournamentID, m.Round)
	switch {
	case err == nil:
	case errors.Is(err, ErrRoundIncomplete),
		errors.Is(err, ErrRoundAlreadyAdvanced),
		errors.Is(err, brackets.ErrSwissProgressionUnsupported):
		// Expected while the round is still running, when a concurrent
		// completion already advanced it, or when the format has no
		// defined next pairing.
	default:
		s.logger.Error("round progression failed",
			slog.Int("tournament_id", m.TournamentID),
			slog.Int("round", m.Round),
			slog.Any("error", err))
	}
}

func validateResult(m *models.Match, input EndMatchInput) error {
	switch input.Outcome {
	case models.OutcomePlayer1Win, models.OutcomePlayer2Win:
		if input.WinnerParticipantID == nil {
			return ErrWinnerRequired
		}
	case models.OutcomeDraw, models.OutcomeNoContest, models.OutcomeDisputed:
	default:
		return fmt.Errorf("unknown result classification %q", input.Outcome)
	}
	if input.WinnerParticipantID != nil && !m.HasParticipant(*input.WinnerParticipantID) {
		return ErrInvalidWinner
	}
	return nil
}

func (s *matchService) mapMatchErr(err error) error {
	if errors.Is(err, repositories.ErrMatchNotFound) {
		return ErrNotFound
	}
	return err
}
