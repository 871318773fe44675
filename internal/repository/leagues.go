package repository

import (
	"context"
	"errors"
	"fmt"

	"wcpickem/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// LeagueRepository handles league database operations
type LeagueRepository struct {
	db *Database
}

// Create inserts a league. It returns ErrDuplicate when the id or invite
// code is already taken.
func (r *LeagueRepository) Create(ctx context.Context, league *models.League) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO leagues (id, name, invite_code)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, league.ID, league.Name, league.InviteCode).Scan(&league.CreatedAt)

	if isUniqueViolation(err) {
		return fmt.Errorf("league %s: %w", league.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create league: %w", err)
	}

	return nil
}

// GetByID retrieves a league by id
func (r *LeagueRepository) GetByID(ctx context.Context, id string) (*models.League, error) {
	return r.get(ctx, `SELECT id, name, invite_code, created_at FROM leagues WHERE id = $1`, id)
}

// GetByInviteCode retrieves a league by its invite code
func (r *LeagueRepository) GetByInviteCode(ctx context.Context, code string) (*models.League, error) {
	return r.get(ctx, `SELECT id, name, invite_code, created_at FROM leagues WHERE invite_code = $1`, code)
}

// Delete removes a league together with its memberships
func (r *LeagueRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM leagues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete league: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("league %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *LeagueRepository) get(ctx context.Context, query, arg string) (*models.League, error) {
	var league models.League
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(&league.ID, &league.Name, &league.InviteCode, &league.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("league %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get league: %w", err)
	}
	return &league, nil
}
