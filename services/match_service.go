package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
)

// BracketMatchInput describes one match of an externally generated
// bracket. Winner/loser links reference positions in the submitted slice,
// because database ids do not exist until the import transaction runs.
type BracketMatchInput struct {
	Round          int        `json:"round"`
	OrderInRound   int        `json:"order_in_round"`
	Participant1ID *int       `json:"participant1_id,omitempty"`
	Participant2ID *int       `json:"participant2_id,omitempty"`
	WinnerToIndex  *int       `json:"winner_to_index,omitempty"`
	WinnerToSlot   *int       `json:"winner_to_slot,omitempty"`
	LoserToIndex   *int       `json:"loser_to_index,omitempty"`
	LoserToSlot    *int       `json:"loser_to_slot,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
}

// ResultSubmission is a participant's claim about the outcome of a match.
type ResultSubmission struct {
	Score1   int     `json:"score1"`
	Score2   int     `json:"score2"`
	ProofURL *string `json:"proof_url,omitempty"`
}

type MatchService struct {
	tournaments  repositories.TournamentRepository
	matches      repositories.MatchRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	txManager    repositories.TxManager
	notifier     Notifier
	logger       *slog.Logger
}

func NewMatchService(
	tournaments repositories.TournamentRepository,
	matches repositories.MatchRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	txManager repositories.TxManager,
	notifier Notifier,
	logger *slog.Logger,
) *MatchService {
	return &MatchService{
		tournaments:  tournaments,
		matches:      matches,
		participants: participants,
		teams:        teams,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *MatchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	return s.matches.GetByID(ctx, id)
}

func (s *MatchService) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.matches.ListByTournament(ctx, tournamentID, round, status)
}

// participantControlledBy reports whether the user plays for the given
// participant row: the registered user, or the captain of the registered
// team.
func (s *MatchService) participantControlledBy(ctx context.Context, exec repositories.SQLExecutor, participantID, userID int) (bool, error) {
	p, err := s.participants.FindByID(ctx, exec, participantID)
	if err != nil {
		return false, err
	}
	if p.UserID != nil {
		return *p.UserID == userID, nil
	}
	if p.TeamID != nil {
		team, err := s.teams.GetByID(ctx, *p.TeamID)
		if err != nil {
			return false, err
		}
		return team.CaptainID == userID, nil
	}
	return false, nil
}

// slotControlledBy resolves which of the match's two slots the user acts
// for. Returns 0 when the user controls neither.
func (s *MatchService) slotControlledBy(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, userID int) (int, error) {
	if m.Participant1ID != nil {
		controls, err := s.participantControlledBy(ctx, exec, *m.Participant1ID, userID)
		if err != nil {
			return 0, err
		}
		if controls {
			return 1, nil
		}
	}
	if m.Participant2ID != nil {
		controls, err := s.participantControlledBy(ctx, exec, *m.Participant2ID, userID)
		if err != nil {
			return 0, err
		}
		if controls {
			return 2, nil
		}
	}
	return 0, nil
}

// ImportBracket loads an externally generated bracket into a tournament
// whose registration has closed. All matches land in one transaction, then
// the index-based winner/loser links are rewritten as database ids.
func (s *MatchService) ImportBracket(ctx context.Context, tournamentID, actorUserID int, role models.UserRole, inputs []BracketMatchInput) ([]*models.Match, error) {
	if len(inputs) == 0 {
		return nil, validationError("matches", "bracket must contain at least one match")
	}
	for i, in := range inputs {
		if in.Round < 1 {
			return nil, validationError("round", "must be at least 1")
		}
		if in.WinnerToIndex != nil && (*in.WinnerToIndex < 0 || *in.WinnerToIndex >= len(inputs) || *in.WinnerToIndex == i) {
			return nil, validationError("winner_to_index", "must reference another match in the bracket")
		}
		if in.LoserToIndex != nil && (*in.LoserToIndex < 0 || *in.LoserToIndex >= len(inputs) || *in.LoserToIndex == i) {
			return nil, validationError("loser_to_index", "must reference another match in the bracket")
		}
		if (in.WinnerToIndex == nil) != (in.WinnerToSlot == nil) {
			return nil, validationError("winner_to_slot", "must be set together with winner_to_index")
		}
		if in.WinnerToSlot != nil && *in.WinnerToSlot != 1 && *in.WinnerToSlot != 2 {
			return nil, validationError("winner_to_slot", "must be 1 or 2")
		}
		if in.LoserToSlot != nil && *in.LoserToSlot != 1 && *in.LoserToSlot != 2 {
			return nil, validationError("loser_to_slot", "must be 1 or 2")
		}
	}

	created := make([]*models.Match, 0, len(inputs))
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !canManage(t, actorUserID, role) {
			return ErrForbidden
		}
		if t.Status != models.TournamentStatusRegistrationClosed {
			return ErrInvalidTransition
		}

		existing, err := s.matches.ListByTournament(ctx, tournamentID, nil, nil)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return validationError("matches", "tournament already has a bracket")
		}

		// Imported slots must reference registrations of this tournament.
		for _, in := range inputs {
			for _, slot := range []*int{in.Participant1ID, in.Participant2ID} {
				if slot == nil {
					continue
				}
				p, err := s.participants.FindByID(ctx, exec, *slot)
				if err != nil {
					return err
				}
				if p.TournamentID != tournamentID {
					return validationError("participant", "does not belong to this tournament")
				}
			}
		}

		for _, in := range inputs {
			status := models.MatchStatusPending
			if in.Participant1ID != nil && in.Participant2ID != nil {
				status = models.MatchStatusScheduled
			}
			m := &models.Match{
				TournamentID:   tournamentID,
				Round:          in.Round,
				OrderInRound:   in.OrderInRound,
				Participant1ID: in.Participant1ID,
				Participant2ID: in.Participant2ID,
				Status:         status,
				ScheduledAt:    in.ScheduledAt,
			}
			if err := s.matches.Create(ctx, exec, m); err != nil {
				return err
			}
			created = append(created, m)
		}

		for i, in := range inputs {
			if in.WinnerToIndex == nil && in.LoserToIndex == nil {
				continue
			}
			var nextID, loserID *int
			if in.WinnerToIndex != nil {
				nextID = &created[*in.WinnerToIndex].ID
			}
			if in.LoserToIndex != nil {
				loserID = &created[*in.LoserToIndex].ID
			}
			if err := s.matches.UpdateNextMatchLinks(ctx, exec, created[i].ID,
				nextID, in.WinnerToSlot, loserID, in.LoserToSlot); err != nil {
				return err
			}
			created[i].NextMatchID = nextID
			created[i].NextMatchSlot = in.WinnerToSlot
			created[i].NextMatchLoserID = loserID
			created[i].NextMatchLoserSlot = in.LoserToSlot
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bracket imported", "tournament_id", tournamentID, "matches", len(created))
	return created, nil
}

func (s *MatchService) StartMatch(ctx context.Context, matchID, actorUserID int, role models.UserRole) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		t, err := s.tournaments.GetByID(ctx, m.TournamentID)
		if err != nil {
			return err
		}

		slot, err := s.slotControlledBy(ctx, exec, m, actorUserID)
		if err != nil {
			return err
		}
		if slot == 0 && !canManage(t, actorUserID, role) {
			return ErrForbidden
		}

		if m.Participant1ID == nil || m.Participant2ID == nil {
			return ErrMissingParticipant
		}
		if !isValidMatchTransition(m.Status, models.MatchStatusInProgress) {
			return ErrInvalidMatchStatus
		}
		return s.matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusInProgress)
	})
}

// SubmitResult records a participant's claimed score. The match moves to
// AWAITING_CONFIRMATION; the opponent either confirms or disputes it.
func (s *MatchService) SubmitResult(ctx context.Context, matchID, actorUserID int, role models.UserRole, sub ResultSubmission) (*models.Match, error) {
	if sub.Score1 < 0 || sub.Score2 < 0 {
		return nil, ErrInvalidScore
	}
	if sub.Score1 == sub.Score2 {
		return nil, ErrInvalidScore
	}

	var m *models.Match
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		m, err = s.matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		t, err := s.tournaments.GetByID(ctx, m.TournamentID)
		if err != nil {
			return err
		}

		slot, err := s.slotControlledBy(ctx, exec, m, actorUserID)
		if err != nil {
			return err
		}
		if slot == 0 && !canManage(t, actorUserID, role) {
			return ErrNotParticipant
		}

		if m.Participant1ID == nil || m.Participant2ID == nil {
			return ErrMissingParticipant
		}
		// Only a match in play accepts a result. A DISPUTED match is frozen
		// until resolution, even though the status machine has resolution
		// edges out of it.
		switch m.Status {
		case models.MatchStatusInProgress, models.MatchStatusAwaitingScores:
		default:
			return ErrInvalidMatchStatus
		}

		winner := m.Participant1ID
		if sub.Score2 > sub.Score1 {
			winner = m.Participant2ID
		}

		now := time.Now()
		m.Score1 = &sub.Score1
		m.Score2 = &sub.Score2
		m.WinnerParticipantID = winner
		m.Status = models.MatchStatusAwaitingConfirmation
		m.ProofURL = sub.ProofURL
		m.SubmittedByUserID = &actorUserID
		m.ActualEndTime = &now
		return s.matches.RecordResult(ctx, exec, m)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match result submitted", "match_id", matchID, "submitted_by", actorUserID)
	s.notifier.Publish(m.TournamentID, models.EventMatchResultSubmitted, m)
	return m, nil
}

// ConfirmResult accepts the submitted score. The confirmer is the opposing
// participant, a moderator, or the organizer, never the submitter; on
// success the match completes and the winner advances along the bracket
// links.
func (s *MatchService) ConfirmResult(ctx context.Context, matchID, actorUserID int, role models.UserRole) (*models.Match, error) {
	var m *models.Match
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		m, err = s.matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		t, err := s.tournaments.GetByID(ctx, m.TournamentID)
		if err != nil {
			return err
		}

		slot, err := s.slotControlledBy(ctx, exec, m, actorUserID)
		if err != nil {
			return err
		}
		manages := canManage(t, actorUserID, role) || isModerator(role)
		if slot == 0 && !manages {
			return ErrNotParticipant
		}
		if !manages && m.SubmittedByUserID != nil && *m.SubmittedByUserID == actorUserID {
			return ErrSelfConfirmation
		}

		// Confirmation applies only to a submitted, uncontested result. A
		// DISPUTED match leaves this state solely through resolution.
		if m.Status != models.MatchStatusAwaitingConfirmation {
			return ErrInvalidMatchStatus
		}

		if err := s.matches.SetConfirmed(ctx, exec, matchID, true); err != nil {
			return err
		}
		if err := s.matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusCompleted); err != nil {
			return err
		}
		m.IsConfirmed = true
		m.Status = models.MatchStatusCompleted
		return s.advanceWinner(ctx, exec, m)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match completed", "match_id", matchID)
	s.notifier.Publish(m.TournamentID, models.EventMatchCompleted, m)
	return m, nil
}

// advanceWinner pushes the winner (and in double elimination the loser)
// into the linked next matches. The winner_advanced flag plus the slot
// guard in FillSlot make the whole progression idempotent: replays either
// short-circuit on the flag or rewrite a slot with the value it already
// holds.
func (s *MatchService) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	if m.WinnerAdvanced {
		return nil
	}
	if m.WinnerParticipantID == nil {
		return nil
	}

	if m.NextMatchID != nil && m.NextMatchSlot != nil {
		if err := s.fillAndMaybeSchedule(ctx, exec, *m.NextMatchID, *m.NextMatchSlot, *m.WinnerParticipantID); err != nil {
			return err
		}
	}
	if loser := m.LoserParticipantID(); loser != nil && m.NextMatchLoserID != nil && m.NextMatchLoserSlot != nil {
		if err := s.fillAndMaybeSchedule(ctx, exec, *m.NextMatchLoserID, *m.NextMatchLoserSlot, *loser); err != nil {
			return err
		}
	}

	m.WinnerAdvanced = true
	return s.matches.SetWinnerAdvanced(ctx, exec, m.ID, true)
}

func (s *MatchService) fillAndMaybeSchedule(ctx context.Context, exec repositories.SQLExecutor, matchID, slot, participantID int) error {
	if err := s.matches.FillSlot(ctx, exec, matchID, slot, participantID); err != nil {
		return err
	}
	next, err := s.matches.GetByIDForUpdate(ctx, exec, matchID)
	if err != nil {
		return err
	}
	if next.Status == models.MatchStatusPending && next.Participant1ID != nil && next.Participant2ID != nil {
		return s.matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusScheduled)
	}
	return nil
}

// CancelMatch voids a match that will not be played. Organizer only.
func (s *MatchService) CancelMatch(ctx context.Context, matchID, actorUserID int, role models.UserRole) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		t, err := s.tournaments.GetByID(ctx, m.TournamentID)
		if err != nil {
			return err
		}
		if !canManage(t, actorUserID, role) {
			return ErrForbidden
		}
		if !isValidMatchTransition(m.Status, models.MatchStatusCanceled) {
			return ErrInvalidMatchStatus
		}
		return s.matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusCanceled)
	})
}

// hasUnfinishedMatches reports whether any match of the tournament is
// still playable.
func (s *MatchService) hasUnfinishedMatches(ctx context.Context, tournamentID int) (bool, error) {
	matches, err := s.matches.ListByTournament(ctx, tournamentID, nil, nil)
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		switch m.Status {
		case models.MatchStatusCompleted, models.MatchStatusCanceled:
		default:
			return true, nil
		}
	}
	return false, nil
}
