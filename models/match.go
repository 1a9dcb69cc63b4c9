package models

import (
	"fmt"
	"time"
)

type MatchState string

const (
	MatchScheduled MatchState = "scheduled"
	MatchReady     MatchState = "ready"
	MatchOngoing   MatchState = "ongoing"
	MatchCompleted MatchState = "completed"
	MatchCancelled MatchState = "cancelled"
	MatchDisputed  MatchState = "disputed"
)

// Terminal reports whether no further engine-defined transition exists.
// Disputed matches wait on external moderation.
func (s MatchState) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled || s == MatchDisputed
}

type MatchOutcome string

const (
	OutcomePlayer1Win MatchOutcome = "player1_win"
	OutcomePlayer2Win MatchOutcome = "player2_win"
	OutcomeDraw       MatchOutcome = "draw"
	OutcomeNoContest  MatchOutcome = "no_contest"
	OutcomeDisputed   MatchOutcome = "disputed"
)

type ReadinessStatus string

const (
	ReadinessReady        ReadinessStatus = "ready"
	ReadinessNotReady     ReadinessStatus = "not_ready"
	ReadinessDisconnected ReadinessStatus = "disconnected"
	ReadinessDisqualified ReadinessStatus = "disqualified"
)

type Match struct {
	ID           int   `json:"id" db:"id"`
	TournamentID int   `json:"tournament_id" db:"tournament_id"`
	Round        int   `json:"round" db:"round"`
	// Position is the bracket label, unique within a tournament: "R<round>-M<index>".
	Position string `json:"position" db:"position"`
	// MatchNumber is strictly increasing across the whole tournament,
	// continued by round progression, never just per round.
	MatchNumber int `json:"match_number" db:"match_number"`
	// Capacity is the configured participant count, between 2 and 4.
	// Bracket builders always emit head-to-head matches of capacity 2.
	Capacity    int           `json:"capacity" db:"capacity"`
	State       MatchState    `json:"state" db:"state"`
	ScheduledAt time.Time     `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty" db:"started_at"`
	EndedAt     *time.Time    `json:"ended_at,omitempty" db:"ended_at"`
	Outcome     *MatchOutcome `json:"outcome,omitempty" db:"outcome"`
	// WinnerParticipantID references one of the match's own participants.
	WinnerParticipantID *int      `json:"winner_participant_id,omitempty" db:"winner_participant_id"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`

	Participants []MatchParticipant `json:"participants,omitempty" db:"-"`
	Messages     []MatchMessage     `json:"messages,omitempty" db:"-"`
	Disputes     []Dispute          `json:"disputes,omitempty" db:"-"`
}

// Duration is derived, never stored: ended minus started.
func (m *Match) Duration() *time.Duration {
	if m.StartedAt == nil || m.EndedAt == nil {
		return nil
	}
	d := m.EndedAt.Sub(*m.StartedAt)
	return &d
}

// HasParticipant reports whether the given tournament participant plays in
// this match.
func (m *Match) HasParticipant(participantID int) bool {
	for _, mp := range m.Participants {
		if mp.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// AllReady reports whether every current participant flagged ready.
func (m *Match) AllReady() bool {
	if len(m.Participants) == 0 {
		return false
	}
	for _, mp := range m.Participants {
		if mp.Readiness != ReadinessReady {
			return false
		}
	}
	return true
}

// PositionLabel renders the bracket label for a round/index pair.
func PositionLabel(round, index int) string {
	return fmt.Sprintf("R%d-M%d", round, index)
}

type MatchParticipant struct {
	ID            int             `json:"id" db:"id"`
	MatchID       int             `json:"match_id" db:"match_id"`
	ParticipantID int             `json:"participant_id" db:"participant_id"`
	Slot          int             `json:"slot" db:"slot"`
	Readiness     ReadinessStatus `json:"readiness" db:"readiness"`
	// Seed is inherited from bracket generation, carried for
	// subsequent-round pairing only.
	Seed  *int `json:"seed,omitempty" db:"seed"`
	Score *int `json:"score,omitempty" db:"score"`

	Participant *Participant `json:"participant,omitempty" db:"-"`
}

// RoundBye records a participant advancing out of a round without playing.
// Byes never materialize as matches and never appear to observers.
type RoundBye struct {
	ID            int `json:"id" db:"id"`
	TournamentID  int `json:"tournament_id" db:"tournament_id"`
	Round         int `json:"round" db:"round"`
	ParticipantID int `json:"participant_id" db:"participant_id"`
	Seed          int `json:"seed" db:"seed"`
}
