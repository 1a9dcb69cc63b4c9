package models

import "time"

// ParticipantStatus tracks a registration through its lifecycle. Only
// confirmed participants enter bracket generation.
type ParticipantStatus string

const (
	ParticipantRegistered   ParticipantStatus = "registered"
	ParticipantConfirmed    ParticipantStatus = "confirmed"
	ParticipantDisqualified ParticipantStatus = "disqualified"
	ParticipantWithdrawn    ParticipantStatus = "withdrawn"
)

type Participant struct {
	ID           int               `json:"id" db:"id"`
	UserID       int               `json:"user_id" db:"user_id"`
	TournamentID int               `json:"tournament_id" db:"tournament_id"`
	Status       ParticipantStatus `json:"status" db:"status"`
	// Seed is the explicit seed assigned at registration, unique within a
	// tournament when present. Absent seeds sort after all explicit ones.
	Seed      *int      `json:"seed,omitempty" db:"seed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	User *User `json:"user,omitempty" db:"-"`
}
