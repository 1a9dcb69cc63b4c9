package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/vortexplay/arena-server/models"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantConflict = errors.New("user is already registered for this tournament")
	ErrSeedConflict        = errors.New("seed is already taken in this tournament")
)

type ParticipantRepository interface {
	Create(ctx context.Context, participant *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error)
	UpdateStatus(ctx context.Context, id int, status models.ParticipantStatus) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (user_id, tournament_id, status, seed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.UserID, p.TournamentID, p.Status, p.Seed,
	).Scan(&p.ID, &p.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "participants_tournament_id_seed_key":
			return ErrSeedConflict
		default:
			return ErrParticipantConflict
		}
	}
	return err
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `
		SELECT id, user_id, tournament_id, status, seed, created_at
		FROM participants
		WHERE id = $1`

	p := &models.Participant{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.TournamentID, &p.Status, &p.Seed, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error) {
	query := `
		SELECT id, user_id, tournament_id, status, seed, created_at
		FROM participants
		WHERE user_id = $1 AND tournament_id = $2`

	p := &models.Participant{}
	err := r.db.QueryRowContext(ctx, query, userID, tournamentID).Scan(
		&p.ID, &p.UserID, &p.TournamentID, &p.Status, &p.Seed, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant for user %d: %w", userID, err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	query := `
		SELECT id, user_id, tournament_id, status, seed, created_at
		FROM participants
		WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY seed NULLS LAST, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.TournamentID, &p.Status, &p.Seed, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *postgresParticipantRepository) UpdateStatus(ctx context.Context, id int, status models.ParticipantStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE participants SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
