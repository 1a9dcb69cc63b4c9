package models

import "time"

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentSoon         TournamentStatus = "soon"
	TournamentRegistration TournamentStatus = "registration"
	TournamentActive       TournamentStatus = "active"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCanceled     TournamentStatus = "canceled"
)

// BracketFormat selects the builder used at generation time.
type BracketFormat string

const (
	FormatSingleElimination BracketFormat = "single_elimination"
	FormatDoubleElimination BracketFormat = "double_elimination"
	FormatRoundRobin        BracketFormat = "round_robin"
	FormatSwiss             BracketFormat = "swiss"
)

func (f BracketFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatRoundRobin, FormatSwiss:
		return true
	}
	return false
}

// RequiresPowerOfTwo reports whether the format pads the field with byes.
func (f BracketFormat) RequiresPowerOfTwo() bool {
	return f == FormatSingleElimination || f == FormatDoubleElimination
}

type Tournament struct {
	ID              int              `json:"id" db:"id"`
	Name            string           `json:"name" db:"name"`
	Description     *string          `json:"description,omitempty" db:"description"`
	Game            string           `json:"game" db:"game"`
	Format          BracketFormat    `json:"format" db:"format"`
	OrganizerID     int              `json:"organizer_id" db:"organizer_id"`
	RegDate         time.Time        `json:"reg_date" db:"reg_date"`
	StartDate       time.Time        `json:"start_date" db:"start_date"`
	EndDate         time.Time        `json:"end_date" db:"end_date"`
	Status          TournamentStatus `json:"status" db:"status"`
	MaxParticipants int              `json:"max_participants" db:"max_participants"`
	CurrentRound    int              `json:"current_round" db:"current_round"`
	WinnerID        *int             `json:"winner_id,omitempty" db:"winner_id"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`

	// Optional linked data, populated by services, not mapped directly.
	Organizer    *User         `json:"organizer,omitempty" db:"-"`
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}
