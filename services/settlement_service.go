package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
	"golang.org/x/sync/errgroup"
)

// refundConcurrency caps how many wallets are touched at once during mass
// refunds and payouts.
const refundConcurrency = 4

// PrizeAward assigns a share of the prize pool to a participant row.
type PrizeAward struct {
	ParticipantID int   `json:"participant_id"`
	Amount        int64 `json:"amount"`
}

// SettlementService closes tournaments out financially. Cancellation
// refunds every collected entry fee; completion pays the prize pool out.
// Both run one wallet per transaction under idempotency keys, so a crash
// mid-way is repaired by calling the operation again.
type SettlementService struct {
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	teams        repositories.TeamRepository
	transactions repositories.TransactionRepository
	wallets      repositories.WalletRepository
	walletSvc    *WalletService
	matchSvc     *MatchService
	txManager    repositories.TxManager
	notifier     Notifier
	logger       *slog.Logger
}

func NewSettlementService(
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	teams repositories.TeamRepository,
	transactions repositories.TransactionRepository,
	wallets repositories.WalletRepository,
	walletSvc *WalletService,
	matchSvc *MatchService,
	txManager repositories.TxManager,
	notifier Notifier,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		tournaments:  tournaments,
		participants: participants,
		teams:        teams,
		transactions: transactions,
		wallets:      wallets,
		walletSvc:    walletSvc,
		matchSvc:     matchSvc,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger,
	}
}

// TournamentDecision is an organizer-level ruling on how a tournament ends.
type TournamentDecision string

const (
	DecisionCancel   TournamentDecision = "cancel"
	DecisionComplete TournamentDecision = "complete"
)

func cancelRefundKey(tournamentID, participantID int) string {
	return fmt.Sprintf("cancel-refund:t%d:p%d", tournamentID, participantID)
}

func prizeKey(tournamentID, participantID int) string {
	return fmt.Sprintf("prize:t%d:p%d", tournamentID, participantID)
}

func (s *SettlementService) resolvePayer(ctx context.Context, ref models.ParticipantRef) (int, error) {
	if ref.Type == models.ParticipantTypeUser {
		return ref.ID, nil
	}
	team, err := s.teams.GetByID(ctx, ref.ID)
	if err != nil {
		return 0, err
	}
	return team.CaptainID, nil
}

// Decide dispatches an end-of-tournament ruling to the matching flow.
func (s *SettlementService) Decide(ctx context.Context, tournamentID, actorUserID int, role models.UserRole, decision TournamentDecision, reason *string, awards []PrizeAward) error {
	switch decision {
	case DecisionCancel:
		return s.CancelAndRefund(ctx, tournamentID, actorUserID, role, reason)
	case DecisionComplete:
		return s.CompleteAndPayout(ctx, tournamentID, actorUserID, role, awards)
	}
	return validationError("decision", "must be 'cancel' or 'complete'")
}

// CancelAndRefund cancels the tournament and returns every collected
// entry fee. Calling it on an already canceled tournament only re-runs
// the refund sweep, which the idempotency keys turn into no-ops for
// participants refunded earlier.
func (s *SettlementService) CancelAndRefund(ctx context.Context, tournamentID, actorUserID int, role models.UserRole, reason *string) error {
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !canManage(t, actorUserID, role) {
			return ErrForbidden
		}
		if t.Status == models.TournamentStatusCanceled {
			return nil
		}
		if !isValidTournamentTransition(t.Status, models.TournamentStatusCanceled) {
			return ErrInvalidTransition
		}
		return s.tournaments.MarkCanceled(ctx, exec, tournamentID, reason)
	})
	if err != nil {
		return err
	}

	participants, err := s.participants.ListByTournament(ctx, tournamentID, false)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(refundConcurrency)
	for _, p := range participants {
		p := p
		g.Go(func() error {
			return s.refundParticipant(gCtx, tournamentID, p)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refund sweep incomplete, retry cancellation: %w", err)
	}

	s.logger.Info("tournament canceled and refunded",
		"tournament_id", tournamentID,
		"participants", len(participants),
	)
	s.notifier.Publish(tournamentID, models.EventTournamentCanceled, map[string]interface{}{
		"tournament_id": tournamentID,
		"reason":        reason,
	})
	return nil
}

// refundParticipant returns one participant's entry fee in its own
// transaction. The refund mirrors the recorded entry fee transaction, so
// a registration that never paid (or paid a different historical fee)
// refunds exactly what was collected.
func (s *SettlementService) refundParticipant(ctx context.Context, tournamentID int, p *models.Participant) error {
	payerUserID, err := s.resolvePayer(ctx, p.Ref())
	if err != nil {
		return err
	}

	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		original, err := s.transactions.FindByIdempotencyKey(ctx, exec, entryFeeKey(tournamentID, p.ID))
		if err != nil {
			if errors.Is(err, repositories.ErrTransactionNotFound) {
				return nil
			}
			return err
		}

		if _, err := s.wallets.GetByUserIDForUpdate(ctx, exec, payerUserID); err != nil {
			return err
		}

		memo := fmt.Sprintf("refund for canceled tournament %d", tournamentID)
		txn, replayed, err := s.walletSvc.Refund(ctx, exec, original.ID,
			cancelRefundKey(tournamentID, p.ID), &memo)
		if err != nil {
			// A fee already refunded under another key (a support credit,
			// for instance) has nothing left for the sweep to return.
			if errors.Is(err, ErrNotRefundable) {
				return nil
			}
			return err
		}
		if !replayed {
			s.notifier.Publish(tournamentID, models.EventRefundIssued, txn)
		}
		return nil
	})
}

// CompleteAndPayout finishes the tournament and distributes the prize
// pool. Requires every match to be completed or canceled. Retrying after
// a partial payout only pays the remaining awards.
func (s *SettlementService) CompleteAndPayout(ctx context.Context, tournamentID, actorUserID int, role models.UserRole, awards []PrizeAward) error {
	var total int64
	seen := make(map[int]bool, len(awards))
	for _, a := range awards {
		if a.Amount <= 0 {
			return ErrInvalidAmount
		}
		if seen[a.ParticipantID] {
			return validationError("awards", "duplicate participant in prize awards")
		}
		seen[a.ParticipantID] = true
		total += a.Amount
	}

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !canManage(t, actorUserID, role) {
			return ErrForbidden
		}
		if total > t.PrizePool {
			return ErrPrizeExceedsPool
		}
		for _, a := range awards {
			p, err := s.participants.FindByID(ctx, exec, a.ParticipantID)
			if err != nil {
				return err
			}
			if p.TournamentID != tournamentID {
				return validationError("awards", "participant does not belong to this tournament")
			}
		}

		if t.Status == models.TournamentStatusCompleted {
			// Retry after a partial payout; nothing to transition.
			return nil
		}
		if !isValidTournamentTransition(t.Status, models.TournamentStatusCompleted) {
			return ErrInvalidTransition
		}

		unfinished, err := s.matchSvc.hasUnfinishedMatches(ctx, tournamentID)
		if err != nil {
			return err
		}
		if unfinished {
			return ErrMatchesUnfinished
		}
		return s.tournaments.MarkCompleted(ctx, exec, tournamentID, time.Now())
	})
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(refundConcurrency)
	for _, a := range awards {
		a := a
		g.Go(func() error {
			return s.payAward(gCtx, tournamentID, a)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prize payout incomplete, retry completion: %w", err)
	}

	s.logger.Info("tournament completed and paid out",
		"tournament_id", tournamentID,
		"awards", len(awards),
		"total", total,
	)
	s.notifier.Publish(tournamentID, models.EventTournamentStatusChanged, map[string]interface{}{
		"tournament_id": tournamentID,
		"status":        models.TournamentStatusCompleted,
	})
	return nil
}

func (s *SettlementService) payAward(ctx context.Context, tournamentID int, a PrizeAward) error {
	p, err := s.participants.FindByID(ctx, nil, a.ParticipantID)
	if err != nil {
		return err
	}
	payerUserID, err := s.resolvePayer(ctx, p.Ref())
	if err != nil {
		return err
	}

	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		wallet, err := s.wallets.GetByUserIDForUpdate(ctx, exec, payerUserID)
		if err != nil {
			return err
		}
		memo := fmt.Sprintf("prize payout for tournament %d", tournamentID)
		txn, replayed, err := s.walletSvc.Credit(ctx, exec, wallet.ID, models.TransactionTypePrizePayout,
			a.Amount, prizeKey(tournamentID, a.ParticipantID), nil, &memo)
		if err != nil {
			return err
		}
		if !replayed {
			s.notifier.Publish(tournamentID, models.EventPrizePaid, txn)
		}
		return nil
	})
}
