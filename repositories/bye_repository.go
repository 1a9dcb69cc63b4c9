package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vortexplay/arena-server/models"
)

// ByeRepository stores bye-advances. Byes never become matches; progression
// merges them with round winners when building the next round.
type ByeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, bye *models.RoundBye) error
	ListByRound(ctx context.Context, tournamentID, round int) ([]models.RoundBye, error)
}

type postgresByeRepository struct {
	db *sql.DB
}

func NewPostgresByeRepository(db *sql.DB) ByeRepository {
	return &postgresByeRepository{db: db}
}

func (r *postgresByeRepository) Create(ctx context.Context, exec SQLExecutor, bye *models.RoundBye) error {
	query := `
		INSERT INTO round_byes (tournament_id, round, participant_id, seed)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return exec.QueryRowContext(ctx, query,
		bye.TournamentID, bye.Round, bye.ParticipantID, bye.Seed,
	).Scan(&bye.ID)
}

func (r *postgresByeRepository) ListByRound(ctx context.Context, tournamentID, round int) ([]models.RoundBye, error) {
	query := `
		SELECT id, tournament_id, round, participant_id, seed
		FROM round_byes
		WHERE tournament_id = $1 AND round = $2
		ORDER BY seed`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to query byes for tournament %d round %d: %w", tournamentID, round, err)
	}
	defer rows.Close()

	byes := make([]models.RoundBye, 0)
	for rows.Next() {
		var b models.RoundBye
		if err := rows.Scan(&b.ID, &b.TournamentID, &b.Round, &b.ParticipantID, &b.Seed); err != nil {
			return nil, fmt.Errorf("failed to scan bye row: %w", err)
		}
		byes = append(byes, b)
	}
	return byes, rows.Err()
}
