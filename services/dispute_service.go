package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
)

type DisputeService struct {
	tournaments repositories.TournamentRepository
	matches     repositories.MatchRepository
	disputes    repositories.DisputeRepository
	matchSvc    *MatchService
	txManager   repositories.TxManager
	notifier    Notifier
	logger      *slog.Logger
}

func NewDisputeService(
	tournaments repositories.TournamentRepository,
	matches repositories.MatchRepository,
	disputes repositories.DisputeRepository,
	matchSvc *MatchService,
	txManager repositories.TxManager,
	notifier Notifier,
	logger *slog.Logger,
) *DisputeService {
	return &DisputeService{
		tournaments: tournaments,
		matches:     matches,
		disputes:    disputes,
		matchSvc:    matchSvc,
		txManager:   txManager,
		notifier:    notifier,
		logger:      logger,
	}
}

func isModerator(role models.UserRole) bool {
	return role == models.RoleModerator || role == models.RoleAdmin
}

// Open files a dispute against a submitted result. The match freezes in
// DISPUTED until a moderator rules on it; the partial unique index in the
// database guarantees at most one open ticket per match.
func (s *DisputeService) Open(ctx context.Context, matchID, reporterUserID int, reason string) (*models.DisputeTicket, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("reason", "must not be empty")
	}

	d := &models.DisputeTicket{
		MatchID:        matchID,
		ReporterUserID: reporterUserID,
		Reason:         reason,
		Status:         models.DisputeStatusOpen,
	}
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchStatusAwaitingConfirmation {
			return ErrDisputeWindowShut
		}

		slot, err := s.matchSvc.slotControlledBy(ctx, exec, m, reporterUserID)
		if err != nil {
			return err
		}
		if slot == 0 {
			return ErrNotParticipant
		}

		if err := s.matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusDisputed); err != nil {
			return err
		}
		d.TournamentID = m.TournamentID
		return s.disputes.Create(ctx, exec, d)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute opened", "dispute_id", d.ID, "match_id", matchID, "reporter_id", reporterUserID)
	s.notifier.Publish(d.TournamentID, models.EventDisputeOpened, d)
	return d, nil
}

func (s *DisputeService) GetByID(ctx context.Context, id int, role models.UserRole) (*models.DisputeTicket, error) {
	if !isModerator(role) {
		return nil, ErrForbidden
	}
	return s.disputes.GetByID(ctx, id)
}

func (s *DisputeService) ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int, role models.UserRole) ([]*models.DisputeTicket, error) {
	if !isModerator(role) {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.disputes.ListByStatus(ctx, status, limit, offset)
}

// StartReview claims the ticket for a moderator.
func (s *DisputeService) StartReview(ctx context.Context, disputeID, moderatorUserID int, role models.UserRole) error {
	if !isModerator(role) {
		return ErrForbidden
	}
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		d, err := s.disputes.GetByIDForUpdate(ctx, exec, disputeID)
		if err != nil {
			return err
		}
		if !isValidDisputeTransition(d.Status, models.DisputeStatusUnderReview) {
			return ErrAlreadyResolved
		}
		return s.disputes.UpdateStatus(ctx, exec, disputeID, models.DisputeStatusUnderReview, &moderatorUserID)
	})
}

// Resolve rules on the dispute. The match row is locked before the ticket
// row, and the ticket's status is re-checked under the lock, so concurrent
// moderators get exactly one success and one ErrAlreadyResolved.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, moderatorUserID int, role models.UserRole, outcome models.DisputeStatus, details *string, overrideScore1, overrideScore2 *int) (*models.DisputeTicket, error) {
	if !isModerator(role) {
		return nil, ErrForbidden
	}
	switch outcome {
	case models.DisputeStatusResolvedP1Win, models.DisputeStatusResolvedP2Win,
		models.DisputeStatusResolvedReplay, models.DisputeStatusResolvedNoAction,
		models.DisputeStatusClosedInvalid:
	default:
		return nil, ErrInvalidResolution
	}

	var (
		d *models.DisputeTicket
		m *models.Match
	)
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		unlocked, err := s.disputes.GetByID(ctx, disputeID)
		if err != nil {
			return err
		}

		m, err = s.matches.GetByIDForUpdate(ctx, exec, unlocked.MatchID)
		if err != nil {
			return err
		}
		d, err = s.disputes.GetByIDForUpdate(ctx, exec, disputeID)
		if err != nil {
			return err
		}
		if !d.Status.IsResolvable() {
			return ErrAlreadyResolved
		}
		if !isValidDisputeTransition(d.Status, outcome) {
			return ErrInvalidTransition
		}

		if err := s.applyOutcome(ctx, exec, m, outcome, details, overrideScore1, overrideScore2); err != nil {
			return err
		}

		now := time.Now()
		if err := s.disputes.Resolve(ctx, exec, disputeID, outcome, details, moderatorUserID, now); err != nil {
			return err
		}
		d.Status = outcome
		d.ResolutionDetails = details
		d.ModeratorUserID = &moderatorUserID
		d.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute resolved", "dispute_id", disputeID, "outcome", outcome, "moderator_id", moderatorUserID)
	s.notifier.Publish(d.TournamentID, models.EventDisputeResolved, d)
	if m.Status == models.MatchStatusCompleted {
		s.notifier.Publish(m.TournamentID, models.EventMatchCompleted, m)
	}
	return d, nil
}

// applyOutcome rewrites the match according to the ruling.
func (s *DisputeService) applyOutcome(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, outcome models.DisputeStatus, details *string, overrideScore1, overrideScore2 *int) error {
	switch outcome {
	case models.DisputeStatusResolvedP1Win, models.DisputeStatusResolvedP2Win:
		winner := m.Participant1ID
		if outcome == models.DisputeStatusResolvedP2Win {
			winner = m.Participant2ID
		}
		if winner == nil {
			return ErrMissingParticipant
		}
		if overrideScore1 != nil {
			m.Score1 = overrideScore1
		}
		if overrideScore2 != nil {
			m.Score2 = overrideScore2
		}
		now := time.Now()
		m.WinnerParticipantID = winner
		m.Status = models.MatchStatusCompleted
		m.IsConfirmed = true
		m.ModeratorNotes = details
		m.ActualEndTime = &now
		if err := s.matches.ApplyResolution(ctx, exec, m); err != nil {
			return err
		}
		return s.matchSvc.advanceWinner(ctx, exec, m)

	case models.DisputeStatusResolvedReplay:
		// The match returns to the bracket untouched by the contested result.
		m.Score1 = nil
		m.Score2 = nil
		m.WinnerParticipantID = nil
		m.Status = models.MatchStatusScheduled
		m.ProofURL = nil
		m.SubmittedByUserID = nil
		m.IsConfirmed = false
		m.ModeratorNotes = details
		m.WinnerAdvanced = false
		m.ActualEndTime = nil
		return s.matches.ApplyResolution(ctx, exec, m)

	case models.DisputeStatusResolvedNoAction, models.DisputeStatusClosedInvalid:
		// The submitted result stands: the match completes with the prior
		// winner unchanged.
		now := time.Now()
		m.Status = models.MatchStatusCompleted
		m.IsConfirmed = true
		m.ModeratorNotes = details
		if m.ActualEndTime == nil {
			m.ActualEndTime = &now
		}
		if err := s.matches.ApplyResolution(ctx, exec, m); err != nil {
			return err
		}
		return s.matchSvc.advanceWinner(ctx, exec, m)
	}
	return ErrInvalidResolution
}
