package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vortexplay/arena-server/models"
)

// MessageRepository stores match chat. Order is append order by id; the
// per-match serialization in the service layer makes that the FIFO order
// observers see.
type MessageRepository interface {
	Create(ctx context.Context, exec SQLExecutor, msg *models.MatchMessage) error
	ListByMatch(ctx context.Context, matchID int) ([]models.MatchMessage, error)
}

type postgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) MessageRepository {
	return &postgresMessageRepository{db: db}
}

func (r *postgresMessageRepository) Create(ctx context.Context, exec SQLExecutor, msg *models.MatchMessage) error {
	query := `
		INSERT INTO match_messages (match_id, sender_type, sender_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return exec.QueryRowContext(ctx, query,
		msg.MatchID, msg.SenderType, msg.SenderID, msg.Text,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *postgresMessageRepository) ListByMatch(ctx context.Context, matchID int) ([]models.MatchMessage, error) {
	query := `
		SELECT id, match_id, sender_type, sender_id, text, created_at
		FROM match_messages
		WHERE match_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for match %d: %w", matchID, err)
	}
	defer rows.Close()

	messages := make([]models.MatchMessage, 0)
	for rows.Next() {
		var m models.MatchMessage
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderType, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
