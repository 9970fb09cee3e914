package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
)

// RegistrationService handles joining and leaving tournaments. Each
// registration is a single transaction: tournament row lock, duplicate
// check, entry fee debit, participant insert, counter increment. Any
// failure unwinds all of it.
type RegistrationService struct {
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	transactions repositories.TransactionRepository
	wallets      repositories.WalletRepository
	walletSvc    *WalletService
	txManager    repositories.TxManager
	notifier     Notifier
	logger       *slog.Logger
}

func NewRegistrationService(
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	transactions repositories.TransactionRepository,
	wallets repositories.WalletRepository,
	walletSvc *WalletService,
	txManager repositories.TxManager,
	notifier Notifier,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		tournaments:  tournaments,
		participants: participants,
		teams:        teams,
		transactions: transactions,
		wallets:      wallets,
		walletSvc:    walletSvc,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger,
	}
}

// Financial idempotency keys are derived from the participant row, not the
// registered user or team. Each registration gets its own row, so a
// withdrawal followed by a fresh registration charges a fresh fee instead
// of replaying the refunded one.
func entryFeeKey(tournamentID, participantID int) string {
	return fmt.Sprintf("entry-fee:t%d:p%d", tournamentID, participantID)
}

func withdrawRefundKey(tournamentID, participantID int) string {
	return fmt.Sprintf("withdraw-refund:t%d:p%d", tournamentID, participantID)
}

// resolvePayer returns the user whose wallet pays for (and receives
// refunds for) the registration: the user themself, or the team captain.
func (s *RegistrationService) resolvePayer(ctx context.Context, ref models.ParticipantRef) (int, error) {
	if ref.Type == models.ParticipantTypeUser {
		return ref.ID, nil
	}
	team, err := s.teams.GetByID(ctx, ref.ID)
	if err != nil {
		return 0, err
	}
	return team.CaptainID, nil
}

// controlsParticipant reports whether the user acts for the registration:
// the registered user themself, or the captain of the registered team.
func (s *RegistrationService) controlsParticipant(ctx context.Context, p *models.Participant, userID int) (bool, error) {
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

func (s *RegistrationService) Register(ctx context.Context, tournamentID int, ref models.ParticipantRef, actorUserID int, role models.UserRole) (*models.Participant, error) {
	if ref.ID <= 0 {
		return nil, validationError("id", "must reference an existing user or team")
	}
	if ref.Type != models.ParticipantTypeUser && ref.Type != models.ParticipantTypeTeam {
		return nil, validationError("type", "must be 'user' or 'team'")
	}

	payerUserID, err := s.resolvePayer(ctx, ref)
	if err != nil {
		return nil, err
	}
	if payerUserID != actorUserID && role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	p := &models.Participant{TournamentID: tournamentID}
	if ref.Type == models.ParticipantTypeUser {
		p.UserID = &ref.ID
	} else {
		p.TeamID = &ref.ID
	}

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.TournamentStatusRegistrationOpen {
			return ErrRegistrationClosed
		}

		_, err = s.participants.FindByRef(ctx, exec, tournamentID, ref)
		if err == nil {
			return ErrAlreadyRegistered
		}
		if !errors.Is(err, repositories.ErrParticipantNotFound) {
			return err
		}

		// The participant row goes in first so its id can key the fee debit.
		if err := s.participants.Create(ctx, exec, p); err != nil {
			if errors.Is(err, repositories.ErrParticipantConflict) {
				return ErrAlreadyRegistered
			}
			return err
		}

		if t.EntryFee > 0 {
			wallet, err := s.wallets.GetByUserIDForUpdate(ctx, exec, payerUserID)
			if err != nil {
				return err
			}
			memo := fmt.Sprintf("entry fee for tournament %q", t.Name)
			_, _, err = s.walletSvc.Debit(ctx, exec, wallet.ID, models.TransactionTypeEntryFee,
				t.EntryFee, entryFeeKey(tournamentID, p.ID), nil, &memo)
			if err != nil {
				return err
			}
		}

		if err := s.tournaments.IncrementParticipants(ctx, exec, tournamentID); err != nil {
			if errors.Is(err, repositories.ErrTournamentCapacityFull) {
				return ErrTournamentFull
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant registered",
		"tournament_id", tournamentID,
		"participant_id", p.ID,
		"type", ref.Type,
	)
	s.notifier.Publish(tournamentID, models.EventParticipantRegistered, p)
	return p, nil
}

// Withdraw removes a registration while registration is still open, and
// refunds the entry fee to the payer's wallet. The refund is keyed, so a
// retried withdrawal cannot refund twice.
func (s *RegistrationService) Withdraw(ctx context.Context, tournamentID, participantID, actorUserID int, role models.UserRole) error {
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}

		p, err := s.participants.FindByID(ctx, exec, participantID)
		if err != nil {
			return err
		}
		if p.TournamentID != tournamentID {
			return repositories.ErrParticipantNotFound
		}

		controls, err := s.controlsParticipant(ctx, p, actorUserID)
		if err != nil {
			return err
		}
		if !controls && !canManage(t, actorUserID, role) {
			return ErrForbidden
		}

		if t.Status != models.TournamentStatusRegistrationOpen {
			return ErrRegistrationClosed
		}

		// The refund mirrors the recorded entry fee transaction, so a
		// registration that never paid refunds nothing.
		original, err := s.transactions.FindByIdempotencyKey(ctx, exec, entryFeeKey(tournamentID, p.ID))
		if err != nil && !errors.Is(err, repositories.ErrTransactionNotFound) {
			return err
		}
		if err == nil {
			payerUserID, err := s.resolvePayer(ctx, p.Ref())
			if err != nil {
				return err
			}
			if _, err := s.wallets.GetByUserIDForUpdate(ctx, exec, payerUserID); err != nil {
				return err
			}
			memo := fmt.Sprintf("withdrawal refund for tournament %q", t.Name)
			_, _, err = s.walletSvc.Refund(ctx, exec, original.ID,
				withdrawRefundKey(tournamentID, p.ID), &memo)
			if err != nil {
				return err
			}
		}

		if err := s.participants.Delete(ctx, exec, participantID); err != nil {
			return err
		}
		return s.tournaments.DecrementParticipants(ctx, exec, tournamentID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("participant withdrew", "tournament_id", tournamentID, "participant_id", participantID)
	s.notifier.Publish(tournamentID, models.EventParticipantWithdrew, map[string]interface{}{
		"tournament_id":  tournamentID,
		"participant_id": participantID,
	})
	return nil
}

func (s *RegistrationService) CheckIn(ctx context.Context, tournamentID, participantID, actorUserID int, role models.UserRole) error {
	t, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	switch t.Status {
	case models.TournamentStatusRegistrationOpen, models.TournamentStatusRegistrationClosed:
	default:
		return ErrRegistrationClosed
	}

	p, err := s.participants.FindByID(ctx, nil, participantID)
	if err != nil {
		return err
	}
	if p.TournamentID != tournamentID {
		return repositories.ErrParticipantNotFound
	}

	controls, err := s.controlsParticipant(ctx, p, actorUserID)
	if err != nil {
		return err
	}
	if !controls && !canManage(t, actorUserID, role) {
		return ErrForbidden
	}
	return s.participants.SetCheckedIn(ctx, participantID, true)
}

// AssignSeed sets or clears a participant's bracket seed. Organizer only,
// and only before the bracket goes live.
func (s *RegistrationService) AssignSeed(ctx context.Context, tournamentID, participantID int, seed *int, actorUserID int, role models.UserRole) error {
	t, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	if !canManage(t, actorUserID, role) {
		return ErrForbidden
	}
	switch t.Status {
	case models.TournamentStatusPending, models.TournamentStatusRegistrationOpen, models.TournamentStatusRegistrationClosed:
	default:
		return ErrInvalidTransition
	}
	if seed != nil && *seed < 1 {
		return validationError("seed", "must be a positive number")
	}

	p, err := s.participants.FindByID(ctx, nil, participantID)
	if err != nil {
		return err
	}
	if p.TournamentID != tournamentID {
		return repositories.ErrParticipantNotFound
	}
	return s.participants.SetSeed(ctx, participantID, seed)
}

func (s *RegistrationService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	return s.participants.ListByTournament(ctx, tournamentID, true)
}
