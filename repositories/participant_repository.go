package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bracketworks/arena/models"
	"github.com/lib/pq"
)

var (
	ErrParticipantNotFound          = errors.New("participant registration not found")
	ErrParticipantConflict          = errors.New("user or team is already registered for this tournament")
	ErrParticipantUserInvalid       = errors.New("participant user reference invalid")
	ErrParticipantTeamInvalid       = errors.New("participant team reference invalid")
	ErrParticipantTournamentInvalid = errors.New("participant tournament reference invalid")
	ErrParticipantTypeViolation     = errors.New("either user_id or team_id must be set, but not both")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	FindByRef(ctx context.Context, exec SQLExecutor, tournamentID int, ref models.ParticipantRef) (*models.Participant, error)
	ListByTournament(ctx context.Context, tournamentID int, includeDetails bool) ([]*models.Participant, error)
	SetCheckedIn(ctx context.Context, id int, checkedIn bool) error
	SetSeed(ctx context.Context, id int, seed *int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, user_id, team_id, checked_in, seed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		p.TournamentID, p.UserID, p.TeamID, p.CheckedIn, p.Seed,
	).Scan(&p.ID, &p.RegisteredAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "participants_tournament_id_user_id_key" ||
					pqErr.Constraint == "participants_tournament_id_team_id_key" {
					return ErrParticipantConflict
				}
			case "23503":
				switch pqErr.Constraint {
				case "participants_user_id_fkey":
					return ErrParticipantUserInvalid
				case "participants_team_id_fkey":
					return ErrParticipantTeamInvalid
				case "participants_tournament_id_fkey":
					return ErrParticipantTournamentInvalid
				}
			case "23514":
				if pqErr.Constraint == "chk_participant_type" {
					return ErrParticipantTypeViolation
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) scanParticipant(row interface{ Scan(...interface{}) error }, p *models.Participant) error {
	return row.Scan(
		&p.ID, &p.TournamentID, &p.UserID, &p.TeamID, &p.CheckedIn, &p.Seed, &p.RegisteredAt,
	)
}

func (r *postgresParticipantRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	err := r.scanParticipant(r.executor(exec).QueryRowContext(ctx, query, args...), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `
		SELECT id, tournament_id, user_id, team_id, checked_in, seed, registered_at
		FROM participants WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresParticipantRepository) FindByRef(ctx context.Context, exec SQLExecutor, tournamentID int, ref models.ParticipantRef) (*models.Participant, error) {
	column := "user_id"
	if ref.Type == models.ParticipantTypeTeam {
		column = "team_id"
	}
	query := fmt.Sprintf(`
		SELECT id, tournament_id, user_id, team_id, checked_in, seed, registered_at
		FROM participants WHERE tournament_id = $1 AND %s = $2`, column)
	return r.findOne(ctx, exec, query, tournamentID, ref.ID)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int, includeDetails bool) ([]*models.Participant, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT p.id, p.tournament_id, p.user_id, p.team_id, p.checked_in, p.seed, p.registered_at`)
	if includeDetails {
		queryBuilder.WriteString(`,
			COALESCE(u.id, 0), COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), u.nickname,
			COALESCE(t.id, 0), COALESCE(t.name, '')`)
	}
	queryBuilder.WriteString(`
		FROM participants p`)
	if includeDetails {
		queryBuilder.WriteString(`
		LEFT JOIN users u ON p.user_id = u.id
		LEFT JOIN teams t ON p.team_id = t.id`)
	}
	queryBuilder.WriteString(` WHERE p.tournament_id = $1 ORDER BY p.registered_at ASC`)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by tournament: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		var u models.User
		var t models.Team

		scanDest := []interface{}{&p.ID, &p.TournamentID, &p.UserID, &p.TeamID, &p.CheckedIn, &p.Seed, &p.RegisteredAt}
		if includeDetails {
			scanDest = append(scanDest,
				&u.ID, &u.FirstName, &u.LastName, &u.Nickname,
				&t.ID, &t.Name,
			)
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		if includeDetails {
			if p.UserID != nil && u.ID > 0 {
				p.User = &u
			}
			if p.TeamID != nil && t.ID > 0 {
				p.Team = &t
			}
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) SetCheckedIn(ctx context.Context, id int, checkedIn bool) error {
	query := `UPDATE participants SET checked_in = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, checkedIn, id)
	if err != nil {
		return fmt.Errorf("failed to update participant check-in: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) SetSeed(ctx context.Context, id int, seed *int) error {
	query := `UPDATE participants SET seed = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, seed, id)
	if err != nil {
		return fmt.Errorf("failed to update participant seed: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM participants WHERE id = $1`
	result, err := r.executor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `SELECT COUNT(*) FROM participants WHERE tournament_id = $1`
	var count int
	err := r.executor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}
