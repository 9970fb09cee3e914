package models

import "time"

// DisputeStatus mirrors the dispute_status ENUM in the database.
type DisputeStatus string

const (
	DisputeStatusOpen             DisputeStatus = "open"
	DisputeStatusUnderReview      DisputeStatus = "under_review"
	DisputeStatusResolvedP1Win    DisputeStatus = "resolved_participant1_win"
	DisputeStatusResolvedP2Win    DisputeStatus = "resolved_participant2_win"
	DisputeStatusResolvedReplay   DisputeStatus = "resolved_replay_match"
	DisputeStatusResolvedNoAction DisputeStatus = "resolved_no_action"
	DisputeStatusClosedInvalid    DisputeStatus = "closed_invalid"
)

// IsResolvable reports whether a moderator may still act on the ticket.
func (s DisputeStatus) IsResolvable() bool {
	return s == DisputeStatusOpen || s == DisputeStatusUnderReview
}

// DisputeTicket records a contested match result. At most one ticket per
// match may be open at any time (partial unique index on match_id).
type DisputeTicket struct {
	ID                int           `json:"id" db:"id"`
	MatchID           int           `json:"match_id" db:"match_id"`
	TournamentID      int           `json:"tournament_id" db:"tournament_id"`
	ReporterUserID    int           `json:"reporter_user_id" db:"reporter_user_id"`
	Reason            string        `json:"reason" db:"reason"`
	Status            DisputeStatus `json:"status" db:"status"`
	ResolutionDetails *string       `json:"resolution_details,omitempty" db:"resolution_details"`
	ModeratorUserID   *int          `json:"moderator_user_id,omitempty" db:"moderator_user_id"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
}
