package models

import "time"

type DisputeStatus string

const (
	DisputePending       DisputeStatus = "pending"
	DisputeInvestigating DisputeStatus = "investigating"
	DisputeResolved      DisputeStatus = "resolved"
	DisputeRejected      DisputeStatus = "rejected"
)

type DisputeCategory string

const (
	DisputeCheating       DisputeCategory = "cheating"
	DisputeWrongResult    DisputeCategory = "wrong_result"
	DisputeNoShow         DisputeCategory = "no_show"
	DisputeUnsportsmanlike DisputeCategory = "unsportsmanlike"
	DisputeOther          DisputeCategory = "other"
)

type Dispute struct {
	ID          int             `json:"id" db:"id"`
	MatchID     int             `json:"match_id" db:"match_id"`
	ReporterID  int             `json:"reporter_id" db:"reporter_id"`
	Category    DisputeCategory `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	// EvidenceKeys are object-storage keys of uploaded attachments.
	EvidenceKeys []string      `json:"evidence_keys" db:"-"`
	Status       DisputeStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}
