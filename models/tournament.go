package models

import (
	"encoding/json"
	"time"
)

// TournamentStatus mirrors the tournament_status ENUM in the database.
type TournamentStatus string

const (
	TournamentStatusPending            TournamentStatus = "pending"
	TournamentStatusRegistrationOpen   TournamentStatus = "registration_open"
	TournamentStatusRegistrationClosed TournamentStatus = "registration_closed"
	TournamentStatusOngoing            TournamentStatus = "ongoing"
	TournamentStatusCompleted          TournamentStatus = "completed"
	TournamentStatusCanceled           TournamentStatus = "canceled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentStatusCompleted || s == TournamentStatusCanceled
}

type Tournament struct {
	ID                  int              `json:"id" db:"id"`
	Name                string           `json:"name" db:"name"`
	GameID              int              `json:"game_id" db:"game_id"`
	OrganizerID         int              `json:"organizer_id" db:"organizer_id"`
	Status              TournamentStatus `json:"status" db:"status"`
	EntryFee            int64            `json:"entry_fee" db:"entry_fee"`
	PrizePool           int64            `json:"prize_pool" db:"prize_pool"`
	MaxParticipants     int              `json:"max_participants" db:"max_participants"`
	CurrentParticipants int              `json:"current_participants" db:"current_participants"`
	BracketType         string           `json:"bracket_type" db:"bracket_type"`
	StartDate           time.Time        `json:"start_date" db:"start_date"`
	EndDate             *time.Time       `json:"end_date,omitempty" db:"end_date"`
	CancelReason        *string          `json:"cancel_reason,omitempty" db:"cancel_reason"`
	Settings            json.RawMessage  `json:"settings,omitempty" db:"settings"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`

	// Optional related entities, loaded on demand.
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

// HasCapacity reports whether another participant fits. The authoritative
// check happens under a row lock inside the registration transaction; this
// method only serves pre-flight reads.
func (t *Tournament) HasCapacity() bool {
	return t.CurrentParticipants < t.MaxParticipants
}
