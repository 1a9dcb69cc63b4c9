package models

import "time"

type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderSystem SenderType = "system"
)

// MatchMessage is one entry of a match's chat log. Order is append order as
// observed by the per-match serializing layer, not wall-clock arrival.
type MatchMessage struct {
	ID         int        `json:"id" db:"id"`
	MatchID    int        `json:"match_id" db:"match_id"`
	SenderType SenderType `json:"sender_type" db:"sender_type"`
	SenderID   *int       `json:"sender_id,omitempty" db:"sender_id"`
	Text       string     `json:"text" db:"text"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
