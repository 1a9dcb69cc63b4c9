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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error)
	// AdvanceRound bumps current_round only if it still equals from; the
	// conditional guard is what makes a racing second progression a no-op.
	AdvanceRound(ctx context.Context, exec SQLExecutor, id, from, to int) (bool, error)
	Complete(ctx context.Context, exec SQLExecutor, id int, winnerParticipantID *int) error
	ListNonTerminal(ctx context.Context) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	id, name, description, game, format, organizer_id, reg_date, start_date,
	end_date, status, max_participants, current_round, winner_id, created_at`

const selectTournament = `SELECT` + tournamentColumns + `
	FROM tournaments`

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, description, game, format, organizer_id, reg_date,
			 start_date, end_date, status, max_participants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, current_round, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.Game, t.Format, t.OrganizerID,
		t.RegDate, t.StartDate, t.EndDate, t.Status, t.MaxParticipants,
	).Scan(&t.ID, &t.CurrentRound, &t.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrTournamentNameConflict
	}
	return err
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := selectTournament + ` WHERE id = $1`

	t := &models.Tournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.Description, &t.Game, &t.Format, &t.OrganizerID,
		&t.RegDate, &t.StartDate, &t.EndDate, &t.Status, &t.MaxParticipants,
		&t.CurrentRound, &t.WinnerID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	query := selectTournament
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY start_date DESC, id DESC`

	return r.queryTournaments(ctx, query, args...)
}

func (r *postgresTournamentRepository) ListNonTerminal(ctx context.Context) ([]*models.Tournament, error) {
	query := selectTournament + `
		WHERE status IN ('soon', 'registration', 'active')
		ORDER BY id`
	return r.queryTournaments(ctx, query)
}

func (r *postgresTournamentRepository) queryTournaments(ctx context.Context, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t := &models.Tournament{}
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Game, &t.Format, &t.OrganizerID,
			&t.RegDate, &t.StartDate, &t.EndDate, &t.Status, &t.MaxParticipants,
			&t.CurrentRound, &t.WinnerID, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *postgresTournamentRepository) AdvanceRound(ctx context.Context, exec SQLExecutor, id, from, to int) (bool, error) {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET current_round = $1 WHERE id = $2 AND current_round = $3`,
		to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to advance tournament %d round: %w", id, err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *postgresTournamentRepository) Complete(ctx context.Context, exec SQLExecutor, id int, winnerParticipantID *int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE tournaments SET status = 'completed', winner_id = $1 WHERE id = $2`,
		winnerParticipantID, id)
	if err != nil {
		return fmt.Errorf("failed to complete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
