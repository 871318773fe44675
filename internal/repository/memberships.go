package repository

import (
	"context"
	"fmt"

	"wcpickem/ingestion/internal/models"
)

// recomputeSQL assigns each membership the sum of its user's scored points.
// Points are always recomputed from predictions, never incremented.
const recomputeSQL = `
	UPDATE memberships ms SET points = COALESCE((
		SELECT SUM(p.points) FROM predictions p
		WHERE p.user_id = ms.user_id AND p.points IS NOT NULL
	), 0)
`

// MembershipRepository handles league membership database operations
type MembershipRepository struct {
	db *Database
}

// Add creates a membership. It reports false when the user is already a member.
func (r *MembershipRepository) Add(ctx context.Context, m *models.Membership) (bool, error) {
	query := `
		INSERT INTO memberships (user_id, league_id, points)
		VALUES ($1, $2, COALESCE((
			SELECT SUM(points) FROM predictions WHERE user_id = $1 AND points IS NOT NULL
		), 0))
		ON CONFLICT (user_id, league_id) DO NOTHING
		RETURNING points, joined_at
	`

	rows, err := r.db.Pool.Query(ctx, query, m.UserID, m.LeagueID)
	if err != nil {
		return false, fmt.Errorf("failed to add membership: %w", err)
	}
	defer rows.Close()

	created := false
	for rows.Next() {
		if err := rows.Scan(&m.Points, &m.JoinedAt); err != nil {
			return false, fmt.Errorf("failed to scan membership: %w", err)
		}
		created = true
	}

	return created, rows.Err()
}

// Remove deletes a membership. It reports false when none existed.
func (r *MembershipRepository) Remove(ctx context.Context, userID, leagueID string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM memberships WHERE user_id = $1 AND league_id = $2`, userID, leagueID)
	if err != nil {
		return false, fmt.Errorf("failed to remove membership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByLeague retrieves a league's members, highest points first
func (r *MembershipRepository) ListByLeague(ctx context.Context, leagueID string) ([]*models.Membership, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT user_id, league_id, points, joined_at
		FROM memberships
		WHERE league_id = $1
		ORDER BY points DESC, joined_at ASC, user_id ASC
	`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.LeagueID, &m.Points, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return members, nil
}

// RecomputePoints refreshes the cached total of every membership
func (r *MembershipRepository) RecomputePoints(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, recomputeSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute membership points: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecomputePointsForUser refreshes the cached totals of one user's memberships
func (r *MembershipRepository) RecomputePointsForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, recomputeSQL+` WHERE ms.user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute membership points: %w", err)
	}
	return tag.RowsAffected(), nil
}
