package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bracketworks/arena/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchTournamentInvalid  = errors.New("match tournament reference invalid")
	ErrMatchParticipantInvalid = errors.New("match participant reference invalid")
	ErrMatchSlotOccupied       = errors.New("match slot already occupied by another participant")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByIDForUpdate locks the match row for the surrounding transaction.
	// The match row is locked before its dispute ticket (Match -> Dispute
	// lock order).
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	// RecordResult persists a submitted result and the AWAITING_CONFIRMATION
	// transition in one statement.
	RecordResult(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// ApplyResolution rewrites score/winner/status from a dispute outcome.
	ApplyResolution(ctx context.Context, exec SQLExecutor, m *models.Match) error
	SetConfirmed(ctx context.Context, exec SQLExecutor, id int, confirmed bool) error
	// FillSlot places a participant into slot 1 or 2 of a match. The update
	// is a no-op (ErrMatchSlotOccupied) when the slot already holds a
	// different participant, and idempotent when it holds the same one.
	FillSlot(ctx context.Context, exec SQLExecutor, matchID, slot, participantID int) error
	SetWinnerAdvanced(ctx context.Context, exec SQLExecutor, id int, advanced bool) error
	UpdateNextMatchLinks(ctx context.Context, exec SQLExecutor, id int, nextMatchID, nextMatchSlot, nextLoserID, nextLoserSlot *int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, order_in_round,
	participant1_id, participant2_id, score1, score2, winner_participant_id,
	status, proof_url, submitted_by_user_id, is_confirmed, moderator_notes, winner_advanced,
	next_match_id, next_match_slot, next_match_loser_id, next_match_loser_slot,
	scheduled_at, actual_end_time, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.OrderInRound,
		&m.Participant1ID, &m.Participant2ID, &m.Score1, &m.Score2, &m.WinnerParticipantID,
		&m.Status, &m.ProofURL, &m.SubmittedByUserID, &m.IsConfirmed, &m.ModeratorNotes, &m.WinnerAdvanced,
		&m.NextMatchID, &m.NextMatchSlot, &m.NextMatchLoserID, &m.NextMatchLoserSlot,
		&m.ScheduledAt, &m.ActualEndTime, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches (
			tournament_id, round, order_in_round, participant1_id, participant2_id,
			status, next_match_id, next_match_slot, next_match_loser_id, next_match_loser_slot,
			scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		m.TournamentID, m.Round, m.OrderInRound, m.Participant1ID, m.Participant2ID,
		m.Status, m.NextMatchID, m.NextMatchSlot, m.NextMatchLoserID, m.NextMatchLoserSlot,
		m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := scanMatch(r.db.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`

	m := &models.Match{}
	err := scanMatch(r.executor(exec).QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholder := 2

	if round != nil {
		queryBuilder.WriteString(" AND round = $" + strconv.Itoa(placeholder))
		args = append(args, *round)
		placeholder++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(placeholder))
		args = append(args, *status)
	}
	queryBuilder.WriteString(" ORDER BY round ASC, order_in_round ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	query := `UPDATE matches SET status = $1 WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET
			score1 = $1, score2 = $2, winner_participant_id = $3, status = $4,
			proof_url = $5, submitted_by_user_id = $6, actual_end_time = $7
		WHERE id = $8`

	result, err := r.executor(exec).ExecContext(ctx, query,
		m.Score1, m.Score2, m.WinnerParticipantID, m.Status,
		m.ProofURL, m.SubmittedByUserID, m.ActualEndTime, m.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ApplyResolution(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET
			score1 = $1, score2 = $2, winner_participant_id = $3, status = $4,
			is_confirmed = $5, moderator_notes = $6, winner_advanced = $7,
			submitted_by_user_id = $8, proof_url = $9, actual_end_time = $10
		WHERE id = $11`

	result, err := r.executor(exec).ExecContext(ctx, query,
		m.Score1, m.Score2, m.WinnerParticipantID, m.Status,
		m.IsConfirmed, m.ModeratorNotes, m.WinnerAdvanced,
		m.SubmittedByUserID, m.ProofURL, m.ActualEndTime, m.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetConfirmed(ctx context.Context, exec SQLExecutor, id int, confirmed bool) error {
	query := `UPDATE matches SET is_confirmed = $1 WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, confirmed, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) FillSlot(ctx context.Context, exec SQLExecutor, matchID, slot, participantID int) error {
	column := "participant1_id"
	if slot == 2 {
		column = "participant2_id"
	}
	// The guard makes double progression harmless: filling a slot with the
	// participant already in it affects one row (no-op rewrite), filling an
	// occupied slot with someone else affects zero rows.
	query := fmt.Sprintf(`
		UPDATE matches SET %s = $1
		WHERE id = $2 AND (%s IS NULL OR %s = $1)`, column, column, column)

	result, err := r.executor(exec).ExecContext(ctx, query, participantID, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchSlotOccupied)
}

func (r *postgresMatchRepository) SetWinnerAdvanced(ctx context.Context, exec SQLExecutor, id int, advanced bool) error {
	query := `UPDATE matches SET winner_advanced = $1 WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, advanced, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateNextMatchLinks(ctx context.Context, exec SQLExecutor, id int, nextMatchID, nextMatchSlot, nextLoserID, nextLoserSlot *int) error {
	query := `
		UPDATE matches SET
			next_match_id = $1, next_match_slot = $2,
			next_match_loser_id = $3, next_match_loser_slot = $4
		WHERE id = $5`
	result, err := r.executor(exec).ExecContext(ctx, query, nextMatchID, nextMatchSlot, nextLoserID, nextLoserSlot, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_participant1_id_fkey", "matches_participant2_id_fkey", "matches_winner_participant_id_fkey":
			return ErrMatchParticipantInvalid
		}
	}
	return err
}
