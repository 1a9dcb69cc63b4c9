package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/vortexplay/arena-server/models"
)

var (
	ErrMatchNotFound            = errors.New("match not found")
	ErrMatchPositionConflict    = errors.New("bracket position already exists in this tournament")
	ErrMatchParticipantConflict = errors.New("participant is already in this match")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetWithParticipants loads the match plus its participant records.
	GetWithParticipants(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, state *models.MatchState) ([]*models.Match, error)
	MaxMatchNumber(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)

	AddParticipant(ctx context.Context, exec SQLExecutor, mp *models.MatchParticipant) error
	ListParticipants(ctx context.Context, matchID int) ([]models.MatchParticipant, error)
	UpdateReadiness(ctx context.Context, exec SQLExecutor, matchID, participantID int, readiness models.ReadinessStatus) error
	UpdateScore(ctx context.Context, exec SQLExecutor, matchID, participantID, score int) error

	// UpdateState is the compare-and-swap the state machine is built on:
	// the transition commits only if the row is still in the expected
	// state, and the boolean reports whether this caller won.
	UpdateState(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchState) (bool, error)
	Start(ctx context.Context, exec SQLExecutor, id int, startedAt time.Time) (bool, error)
	End(ctx context.Context, exec SQLExecutor, id int, endedAt time.Time, outcome models.MatchOutcome, winnerParticipantID *int) (bool, error)
	// ForceState is used by dispute reporting, which overrides any
	// non-terminal state.
	ForceState(ctx context.Context, exec SQLExecutor, id int, to models.MatchState) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, tournament_id, round, position, match_number, capacity, state,
	scheduled_at, started_at, ended_at, outcome, winner_participant_id,
	created_at`

const selectMatch = `SELECT` + matchColumns + `
	FROM matches`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, round, position, match_number, capacity, state, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		m.TournamentID, m.Round, m.Position, m.MatchNumber, m.Capacity, m.State, m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrMatchPositionConflict
	}
	return err
}

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Position, &m.MatchNumber,
		&m.Capacity, &m.State, &m.ScheduledAt, &m.StartedAt, &m.EndedAt,
		&m.Outcome, &m.WinnerParticipantID, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := selectMatch + ` WHERE id = $1`

	m := &models.Match{}
	if err := scanMatch(r.db.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetWithParticipants(ctx context.Context, id int) (*models.Match, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Participants, err = r.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, round *int, state *models.MatchState) ([]*models.Match, error) {
	query := selectMatch + ` WHERE tournament_id = $1`
	args := []interface{}{tournamentID}

	if round != nil {
		args = append(args, *round)
		query += fmt.Sprintf(" AND round = $%d", len(args))
	}
	if state != nil {
		args = append(args, *state)
		query += fmt.Sprintf(" AND state = $%d", len(args))
	}
	query += ` ORDER BY match_number`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if err := scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) MaxMatchNumber(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var max int
	err := exec.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(match_number), 0) FROM matches WHERE tournament_id = $1`,
		tournamentID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max match number for tournament %d: %w", tournamentID, err)
	}
	return max, nil
}

func (r *postgresMatchRepository) AddParticipant(ctx context.Context, exec SQLExecutor, mp *models.MatchParticipant) error {
	query := `
		INSERT INTO match_participants (match_id, participant_id, slot, readiness, seed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		mp.MatchID, mp.ParticipantID, mp.Slot, mp.Readiness, mp.Seed,
	).Scan(&mp.ID)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrMatchParticipantConflict
	}
	return err
}

func (r *postgresMatchRepository) ListParticipants(ctx context.Context, matchID int) ([]models.MatchParticipant, error) {
	query := `
		SELECT id, match_id, participant_id, slot, readiness, seed, score
		FROM match_participants
		WHERE match_id = $1
		ORDER BY slot`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for match %d: %w", matchID, err)
	}
	defer rows.Close()

	participants := make([]models.MatchParticipant, 0)
	for rows.Next() {
		var mp models.MatchParticipant
		if err := rows.Scan(&mp.ID, &mp.MatchID, &mp.ParticipantID, &mp.Slot, &mp.Readiness, &mp.Seed, &mp.Score); err != nil {
			return nil, fmt.Errorf("failed to scan match participant row: %w", err)
		}
		participants = append(participants, mp)
	}
	return participants, rows.Err()
}

func (r *postgresMatchRepository) UpdateReadiness(ctx context.Context, exec SQLExecutor, matchID, participantID int, readiness models.ReadinessStatus) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE match_participants SET readiness = $1 WHERE match_id = $2 AND participant_id = $3`,
		readiness, matchID, participantID)
	if err != nil {
		return fmt.Errorf("failed to update readiness for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresMatchRepository) UpdateScore(ctx context.Context, exec SQLExecutor, matchID, participantID, score int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE match_participants SET score = $1 WHERE match_id = $2 AND participant_id = $3`,
		score, matchID, participantID)
	if err != nil {
		return fmt.Errorf("failed to update score for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresMatchRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, from, to models.MatchState) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE matches SET state = $1 WHERE id = $2 AND state = $3`,
		to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update match %d state: %w", id, err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *postgresMatchRepository) Start(ctx context.Context, exec SQLExecutor, id int, startedAt time.Time) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE matches SET state = 'ongoing', started_at = $1 WHERE id = $2 AND state = 'ready'`,
		startedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to start match %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *postgresMatchRepository) End(ctx context.Context, exec SQLExecutor, id int, endedAt time.Time, outcome models.MatchOutcome, winnerParticipantID *int) (bool, error) {
	result, err := exec.ExecContext(ctx, `
		UPDATE matches
		SET state = 'completed', ended_at = $1, outcome = $2, winner_participant_id = $3
		WHERE id = $4 AND state = 'ongoing'`,
		endedAt, outcome, winnerParticipantID, id)
	if err != nil {
		return false, fmt.Errorf("failed to end match %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *postgresMatchRepository) ForceState(ctx context.Context, exec SQLExecutor, id int, to models.MatchState) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE matches SET state = $1 WHERE id = $2`, to, id)
	if err != nil {
		return fmt.Errorf("failed to force match %d state: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
