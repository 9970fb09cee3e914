package models

import "time"

// MatchStatus mirrors the match_status ENUM in the database.
type MatchStatus string

const (
	MatchStatusPending              MatchStatus = "pending"
	MatchStatusScheduled            MatchStatus = "scheduled"
	MatchStatusInProgress           MatchStatus = "in_progress"
	MatchStatusAwaitingScores       MatchStatus = "awaiting_scores"
	MatchStatusAwaitingConfirmation MatchStatus = "awaiting_confirmation"
	MatchStatusDisputed             MatchStatus = "disputed"
	MatchStatusCompleted            MatchStatus = "completed"
	MatchStatusCanceled             MatchStatus = "canceled"
)

// Match is one node of a tournament bracket. Participant slots reference
// participant rows, so the user/team distinction never leaks into the
// bracket itself. A nil slot is either a bye or a placeholder for a winner
// of an earlier match.
type Match struct {
	ID           int `json:"id" db:"id"`
	TournamentID int `json:"tournament_id" db:"tournament_id"`
	Round        int `json:"round" db:"round"`
	OrderInRound int `json:"order_in_round" db:"order_in_round"`

	Participant1ID      *int `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID      *int `json:"participant2_id,omitempty" db:"participant2_id"`
	Score1              *int `json:"score1,omitempty" db:"score1"`
	Score2              *int `json:"score2,omitempty" db:"score2"`
	WinnerParticipantID *int `json:"winner_participant_id,omitempty" db:"winner_participant_id"`

	Status            MatchStatus `json:"status" db:"status"`
	ProofURL          *string     `json:"proof_url,omitempty" db:"proof_url"`
	SubmittedByUserID *int        `json:"submitted_by_user_id,omitempty" db:"submitted_by_user_id"`
	IsConfirmed       bool        `json:"is_confirmed" db:"is_confirmed"`
	ModeratorNotes    *string     `json:"moderator_notes,omitempty" db:"moderator_notes"`
	WinnerAdvanced    bool        `json:"-" db:"winner_advanced"`

	// Bracket links: where the winner and (for double elimination) the
	// loser go next, and into which slot (1 or 2).
	NextMatchID        *int `json:"next_match_id,omitempty" db:"next_match_id"`
	NextMatchSlot      *int `json:"next_match_slot,omitempty" db:"next_match_slot"`
	NextMatchLoserID   *int `json:"next_match_loser_id,omitempty" db:"next_match_loser_id"`
	NextMatchLoserSlot *int `json:"next_match_loser_slot,omitempty" db:"next_match_loser_slot"`

	ScheduledAt   *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	ActualEndTime *time.Time `json:"actual_end_time,omitempty" db:"actual_end_time"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether the given participant row occupies one of
// the two slots.
func (m *Match) HasParticipant(participantID int) bool {
	return (m.Participant1ID != nil && *m.Participant1ID == participantID) ||
		(m.Participant2ID != nil && *m.Participant2ID == participantID)
}

// LoserParticipantID derives the loser from the winner. Returns nil while
// the match is unresolved or was a bye.
func (m *Match) LoserParticipantID() *int {
	if m.WinnerParticipantID == nil || m.Participant1ID == nil || m.Participant2ID == nil {
		return nil
	}
	if *m.WinnerParticipantID == *m.Participant1ID {
		return m.Participant2ID
	}
	return m.Participant1ID
}
