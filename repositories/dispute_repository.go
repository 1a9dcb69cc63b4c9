package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/vortexplay/arena-server/models"
)

var ErrDisputeNotFound = errors.New("dispute not found")

type DisputeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, dispute *models.Dispute) error
	GetByID(ctx context.Context, id int) (*models.Dispute, error)
	ListByMatch(ctx context.Context, matchID int) ([]models.Dispute, error)
	AddEvidence(ctx context.Context, id int, key string) error
	UpdateStatus(ctx context.Context, id int, status models.DisputeStatus) error
}

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

func (r *postgresDisputeRepository) Create(ctx context.Context, exec SQLExecutor, d *models.Dispute) error {
	query := `
		INSERT INTO disputes (match_id, reporter_id, category, description, evidence_keys, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	if d.EvidenceKeys == nil {
		d.EvidenceKeys = []string{}
	}
	return exec.QueryRowContext(ctx, query,
		d.MatchID, d.ReporterID, d.Category, d.Description,
		pq.Array(d.EvidenceKeys), d.Status,
	).Scan(&d.ID, &d.CreatedAt)
}

func (r *postgresDisputeRepository) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	query := `
		SELECT id, match_id, reporter_id, category, description, evidence_keys, status, created_at
		FROM disputes
		WHERE id = $1`

	d := &models.Dispute{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.MatchID, &d.ReporterID, &d.Category, &d.Description,
		pq.Array(&d.EvidenceKeys), &d.Status, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %d: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) ListByMatch(ctx context.Context, matchID int) ([]models.Dispute, error) {
	query := `
		SELECT id, match_id, reporter_id, category, description, evidence_keys, status, created_at
		FROM disputes
		WHERE match_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query disputes for match %d: %w", matchID, err)
	}
	defer rows.Close()

	disputes := make([]models.Dispute, 0)
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(
			&d.ID, &d.MatchID, &d.ReporterID, &d.Category, &d.Description,
			pq.Array(&d.EvidenceKeys), &d.Status, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dispute row: %w", err)
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

func (r *postgresDisputeRepository) AddEvidence(ctx context.Context, id int, key string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE disputes SET evidence_keys = array_append(evidence_keys, $1) WHERE id = $2`,
		key, id)
	if err != nil {
		return fmt.Errorf("failed to add evidence to dispute %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}

func (r *postgresDisputeRepository) UpdateStatus(ctx context.Context, id int, status models.DisputeStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE disputes SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update dispute %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}
