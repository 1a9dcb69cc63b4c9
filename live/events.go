package live

import (
	"fmt"

	"github.com/vortexplay/arena-server/models"
)

// Event types mirrored to every member of a match or tournament group.
const (
	EventParticipantReady       = "participantReady"
	EventMatchStarted           = "matchStarted"
	EventMatchEnded             = "matchEnded"
	EventMatchMessage           = "matchMessage"
	EventUserJoinedMatch        = "userJoinedMatch"
	EventUserLeftMatch          = "userLeftMatch"
	EventTournamentNotification = "tournamentNotification"
)

// Event is the wire envelope for one broadcast. Delivery targets the group
// membership at broadcast time; sessions that join later never see it.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	Room    string      `json:"room,omitempty"`
}

func MatchRoom(matchID int) string {
	return fmt.Sprintf("match_%d", matchID)
}

func TournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

// Broadcaster is the outbound contract services publish through. The hub
// implements it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastToRoom(room string, event Event)
}

type ParticipantReadyPayload struct {
	MatchID       int                    `json:"match_id"`
	ParticipantID int                    `json:"participant_id"`
	UserID        int                    `json:"user_id"`
	Readiness     models.ReadinessStatus `json:"readiness"`
	MatchState    models.MatchState      `json:"match_state"`
}

type MatchStartedPayload struct {
	MatchID   int    `json:"match_id"`
	StartedAt string `json:"started_at"`
}

type MatchEndedPayload struct {
	MatchID             int                 `json:"match_id"`
	Outcome             models.MatchOutcome `json:"outcome"`
	WinnerParticipantID *int                `json:"winner_participant_id,omitempty"`
	DurationSeconds     float64             `json:"duration_seconds"`
}

type MatchMessagePayload struct {
	Message models.MatchMessage `json:"message"`
}

type MatchPresencePayload struct {
	MatchID int `json:"match_id"`
	UserID  int `json:"user_id"`
}

type TournamentNotificationPayload struct {
	TournamentID int         `json:"tournament_id"`
	Kind         string      `json:"kind"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data,omitempty"`
}
