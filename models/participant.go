package models

import "time"

// ParticipantType discriminates the polymorphic participant reference: a
// participant row is backed by either a user or a team, never both.
type ParticipantType string

const (
	ParticipantTypeUser ParticipantType = "user"
	ParticipantTypeTeam ParticipantType = "team"
)

// ParticipantRef is the tagged variant the service layer works with. It is
// resolved to the user_id/team_id column pair only at the persistence
// boundary.
type ParticipantRef struct {
	Type ParticipantType `json:"type"`
	ID   int             `json:"id"`
}

type Participant struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	UserID       *int      `json:"user_id,omitempty" db:"user_id"`
	TeamID       *int      `json:"team_id,omitempty" db:"team_id"`
	CheckedIn    bool      `json:"checked_in" db:"checked_in"`
	Seed         *int      `json:"seed,omitempty" db:"seed"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`

	User *User `json:"user,omitempty" db:"-"`
	Team *Team `json:"team,omitempty" db:"-"`
}

// Ref returns the tagged reference for this row.
func (p *Participant) Ref() ParticipantRef {
	if p.TeamID != nil {
		return ParticipantRef{Type: ParticipantTypeTeam, ID: *p.TeamID}
	}
	if p.UserID != nil {
		return ParticipantRef{Type: ParticipantTypeUser, ID: *p.UserID}
	}
	return ParticipantRef{}
}
