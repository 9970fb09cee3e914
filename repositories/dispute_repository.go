package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/lib/pq"
)

var (
	ErrDisputeNotFound     = errors.New("dispute ticket not found")
	ErrDisputeAlreadyOpen  = errors.New("an open dispute already exists for this match")
	ErrDisputeMatchInvalid = errors.New("dispute match reference invalid")
)

type DisputeRepository interface {
	// Create relies on the partial unique index over open tickets: a second
	// open ticket for the same match fails with ErrDisputeAlreadyOpen no
	// matter what the service layer observed beforehand.
	Create(ctx context.Context, exec SQLExecutor, d *models.DisputeTicket) error
	GetByID(ctx context.Context, id int) (*models.DisputeTicket, error)
	// GetByIDForUpdate locks the ticket row; acquired after the match row
	// per the Match -> Dispute lock order.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.DisputeTicket, error)
	FindOpenByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.DisputeTicket, error)
	ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]*models.DisputeTicket, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, moderatorUserID *int) error
	Resolve(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, details *string, moderatorUserID int, resolvedAt time.Time) error
}

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

func (r *postgresDisputeRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const disputeColumns = `
	id, match_id, tournament_id, reporter_user_id, reason, status,
	resolution_details, moderator_user_id, created_at, resolved_at`

func scanDispute(row interface{ Scan(...interface{}) error }, d *models.DisputeTicket) error {
	return row.Scan(
		&d.ID, &d.MatchID, &d.TournamentID, &d.ReporterUserID, &d.Reason, &d.Status,
		&d.ResolutionDetails, &d.ModeratorUserID, &d.CreatedAt, &d.ResolvedAt,
	)
}

func (r *postgresDisputeRepository) Create(ctx context.Context, exec SQLExecutor, d *models.DisputeTicket) error {
	query := `
		INSERT INTO dispute_tickets (match_id, tournament_id, reporter_user_id, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		d.MatchID, d.TournamentID, d.ReporterUserID, d.Reason, d.Status,
	).Scan(&d.ID, &d.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "dispute_tickets_open_match_id_key" {
					return ErrDisputeAlreadyOpen
				}
			case "23503":
				if pqErr.Constraint == "dispute_tickets_match_id_fkey" {
					return ErrDisputeMatchInvalid
				}
			}
		}
		return fmt.Errorf("failed to create dispute ticket: %w", err)
	}
	return nil
}

func (r *postgresDisputeRepository) GetByID(ctx context.Context, id int) (*models.DisputeTicket, error) {
	query := `SELECT` + disputeColumns + ` FROM dispute_tickets WHERE id = $1`

	d := &models.DisputeTicket{}
	err := scanDispute(r.db.QueryRowContext(ctx, query, id), d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %d: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.DisputeTicket, error) {
	query := `SELECT` + disputeColumns + ` FROM dispute_tickets WHERE id = $1 FOR UPDATE`

	d := &models.DisputeTicket{}
	err := scanDispute(r.executor(exec).QueryRowContext(ctx, query, id), d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to lock dispute %d: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) FindOpenByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.DisputeTicket, error) {
	query := `SELECT` + disputeColumns + `
		FROM dispute_tickets
		WHERE match_id = $1 AND status IN ($2, $3)`

	d := &models.DisputeTicket{}
	err := scanDispute(r.executor(exec).QueryRowContext(ctx, query, matchID,
		models.DisputeStatusOpen, models.DisputeStatusUnderReview), d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to find open dispute for match %d: %w", matchID, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]*models.DisputeTicket, error) {
	query := `SELECT` + disputeColumns + `
		FROM dispute_tickets
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes by status: %w", err)
	}
	defer rows.Close()

	disputes := make([]*models.DisputeTicket, 0)
	for rows.Next() {
		var d models.DisputeTicket
		if scanErr := scanDispute(rows, &d); scanErr != nil {
			return nil, fmt.Errorf("failed to scan dispute row: %w", scanErr)
		}
		disputes = append(disputes, &d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during dispute rows iteration: %w", err)
	}
	return disputes, nil
}

func (r *postgresDisputeRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, moderatorUserID *int) error {
	query := `UPDATE dispute_tickets SET status = $1, moderator_user_id = COALESCE($2, moderator_user_id) WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, status, moderatorUserID, id)
	if err != nil {
		return fmt.Errorf("failed to update dispute status: %w", err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}

func (r *postgresDisputeRepository) Resolve(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, details *string, moderatorUserID int, resolvedAt time.Time) error {
	query := `
		UPDATE dispute_tickets
		SET status = $1, resolution_details = $2, moderator_user_id = $3, resolved_at = $4
		WHERE id = $5`
	result, err := r.executor(exec).ExecContext(ctx, query, status, details, moderatorUserID, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}
