package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	matches      repositories.MatchRepository
	txManager    repositories.TxManager
	notifier     Notifier
	logger       *slog.Logger
}

func NewTournamentService(
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	matches repositories.MatchRepository,
	txManager repositories.TxManager,
	notifier Notifier,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		tournaments:  tournaments,
		participants: participants,
		matches:      matches,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger,
	}
}

// canManage reports whether the actor may administer the tournament:
// admins always, organizers only for their own tournaments.
func canManage(t *models.Tournament, actorID int, role models.UserRole) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleOrganizer && t.OrganizerID == actorID
}

func (s *TournamentService) Create(ctx context.Context, actorID int, role models.UserRole, t *models.Tournament) error {
	if role != models.RoleOrganizer && role != models.RoleAdmin {
		return ErrForbidden
	}
	if strings.TrimSpace(t.Name) == "" {
		return validationError("name", "must not be empty")
	}
	if t.MaxParticipants < 2 {
		return validationError("max_participants", "must be at least 2")
	}
	if t.EntryFee < 0 {
		return validationError("entry_fee", "must not be negative")
	}
	if t.PrizePool < 0 {
		return validationError("prize_pool", "must not be negative")
	}
	if t.StartDate.Before(time.Now()) {
		return validationError("start_date", "must be in the future")
	}

	t.OrganizerID = actorID
	t.Status = models.TournamentStatusPending
	t.CurrentParticipants = 0

	if err := s.tournaments.Create(ctx, t); err != nil {
		return err
	}
	s.logger.Info("tournament created", "tournament_id", t.ID, "organizer_id", actorID)
	return nil
}

// GetByID loads the tournament and, when details are requested, its
// participants and matches in parallel.
func (s *TournamentService) GetByID(ctx context.Context, id int, includeDetails bool) (*models.Tournament, error) {
	t, err := s.tournaments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeDetails {
		return t, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		participants, err := s.participants.ListByTournament(gCtx, id, true)
		if err != nil {
			return err
		}
		t.Participants = make([]models.Participant, 0, len(participants))
		for _, p := range participants {
			t.Participants = append(t.Participants, *p)
		}
		return nil
	})
	g.Go(func() error {
		matches, err := s.matches.ListByTournament(gCtx, id, nil, nil)
		if err != nil {
			return err
		}
		t.Matches = make([]models.Match, 0, len(matches))
		for _, m := range matches {
			t.Matches = append(t.Matches, *m)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return s.tournaments.List(ctx, filter)
}

// Update edits tournament details. Allowed only before the bracket is
// live, and never touches status or the participant counter.
func (s *TournamentService) Update(ctx context.Context, actorID int, role models.UserRole, t *models.Tournament) error {
	current, err := s.tournaments.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	if !canManage(current, actorID, role) {
		return ErrForbidden
	}
	switch current.Status {
	case models.TournamentStatusPending, models.TournamentStatusRegistrationOpen, models.TournamentStatusRegistrationClosed:
	default:
		return ErrInvalidTransition
	}
	if t.MaxParticipants < current.CurrentParticipants {
		return validationError("max_participants", "cannot be lower than the current participant count")
	}
	return s.tournaments.Update(ctx, t)
}

func (s *TournamentService) OpenRegistration(ctx context.Context, tournamentID, actorID int, role models.UserRole) error {
	return s.transition(ctx, tournamentID, actorID, role, models.TournamentStatusRegistrationOpen, nil)
}

func (s *TournamentService) CloseRegistration(ctx context.Context, tournamentID, actorID int, role models.UserRole) error {
	return s.transition(ctx, tournamentID, actorID, role, models.TournamentStatusRegistrationClosed, nil)
}

// Start moves a tournament with a closed registration into play.
func (s *TournamentService) Start(ctx context.Context, tournamentID, actorID int, role models.UserRole) error {
	precondition := func(t *models.Tournament) error {
		if t.CurrentParticipants < 2 {
			return ErrNotEnoughPlayers
		}
		return nil
	}
	return s.transition(ctx, tournamentID, actorID, role, models.TournamentStatusOngoing, precondition)
}

func (s *TournamentService) transition(ctx context.Context, tournamentID, actorID int, role models.UserRole, to models.TournamentStatus, precondition func(*models.Tournament) error) error {
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !canManage(t, actorID, role) {
			return ErrForbidden
		}
		if !isValidTournamentTransition(t.Status, to) {
			return ErrInvalidTransition
		}
		if precondition != nil {
			if err := precondition(t); err != nil {
				return err
			}
		}
		return s.tournaments.UpdateStatus(ctx, exec, tournamentID, to)
	})
	if err != nil {
		return err
	}

	s.logger.Info("tournament status changed", "tournament_id", tournamentID, "status", to)
	s.notifier.Publish(tournamentID, models.EventTournamentStatusChanged, map[string]interface{}{
		"tournament_id": tournamentID,
		"status":        to,
	})
	return nil
}

// AutoUpdateStatuses closes registration and starts tournaments whose
// start date has passed. Called periodically by the scheduler; each
// tournament is handled in its own transaction so one failure does not
// block the rest.
func (s *TournamentService) AutoUpdateStatuses(ctx context.Context, now time.Time) error {
	due, err := s.tournaments.ListForAutoStatusUpdate(ctx, now)
	if err != nil {
		return err
	}

	for _, t := range due {
		tournamentID := t.ID
		err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			locked, err := s.tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
			if err != nil {
				return err
			}
			if locked.Status != models.TournamentStatusRegistrationOpen {
				return nil
			}
			if err := s.tournaments.UpdateStatus(ctx, exec, tournamentID, models.TournamentStatusRegistrationClosed); err != nil {
				return err
			}
			if locked.CurrentParticipants >= 2 {
				return s.tournaments.UpdateStatus(ctx, exec, tournamentID, models.TournamentStatusOngoing)
			}
			return nil
		})
		if err != nil {
			s.logger.Error("auto status update failed", "tournament_id", tournamentID, "error", err)
			continue
		}
		s.notifier.Publish(tournamentID, models.EventTournamentStatusChanged, map[string]interface{}{
			"tournament_id": tournamentID,
		})
	}
	return nil
}
