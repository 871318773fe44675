package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wcpickem/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const matchColumns = `
	id, team1, team2, series_name, name, match_type, venue, scheduled_at,
	started, ended, status, winner, score, scored_at, created_at, updated_at
`

// MatchRepository handles match database operations
type MatchRepository struct {
	db *Database
}

// Upsert inserts or refreshes a match from the feed.
//
// A row that is already resolved (ended with a winner) is never touched.
// A known winner is never replaced by NULL. When the winner or status text
// changes on a row that was already scored, scored_at is cleared so the
// scoring engine picks the match up again.
func (r *MatchRepository) Upsert(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (
			id, team1, team2, series_name, name, match_type, venue, scheduled_at,
			started, ended, status, winner, score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			team1 = EXCLUDED.team1,
			team2 = EXCLUDED.team2,
			series_name = EXCLUDED.series_name,
			name = EXCLUDED.name,
			match_type = EXCLUDED.match_type,
			venue = EXCLUDED.venue,
			scheduled_at = COALESCE(EXCLUDED.scheduled_at, matches.scheduled_at),
			started = EXCLUDED.started,
			ended = EXCLUDED.ended,
			status = EXCLUDED.status,
			winner = COALESCE(EXCLUDED.winner, matches.winner),
			score = COALESCE(EXCLUDED.score, matches.score),
			scored_at = CASE
				WHEN matches.status IS DISTINCT FROM EXCLUDED.status
				  OR matches.winner IS DISTINCT FROM COALESCE(EXCLUDED.winner, matches.winner)
				THEN NULL
				ELSE matches.scored_at
			END,
			updated_at = NOW()
		WHERE NOT (matches.ended AND matches.winner IS NOT NULL)
	`

	tag, err := r.db.Pool.Exec(
		ctx, query,
		match.ID, match.Team1, match.Team2, match.SeriesName, match.Name, match.MatchType, match.Venue,
		nullTime(match.ScheduledAt), match.Started, match.Ended, match.Status, match.Winner, nullJSON(match.Score),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match: %w", err)
	}

	if tag.RowsAffected() == 0 {
		log.Debug().Str("match_id", match.ID).Msg("Match already resolved, upsert skipped")
	}

	return nil
}

// GetByID retrieves a match by its feed id
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return match, nil
}

// ListByIDs retrieves the matches with the given ids. Unknown ids are ignored.
func (r *MatchRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.Match, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = ANY($1)`
	return r.list(ctx, query, ids)
}

// ListAll retrieves every match ordered by kick-off
func (r *MatchRepository) ListAll(ctx context.Context) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches ORDER BY scheduled_at NULLS LAST, id`
	return r.list(ctx, query)
}

// ListEnded retrieves every ended match
func (r *MatchRepository) ListEnded(ctx context.Context) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE ended ORDER BY scheduled_at NULLS LAST, id`
	return r.list(ctx, query)
}

// ListUnscoredEnded retrieves ended matches the scoring engine has not processed
func (r *MatchRepository) ListUnscoredEnded(ctx context.Context) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE ended AND scored_at IS NULL ORDER BY id`
	return r.list(ctx, query)
}

// ResolvedIDs returns the ids of matches that are ended with a known winner
func (r *MatchRepository) ResolvedIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM matches WHERE ended AND winner IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved matches: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

// SettledIDs returns the ids of matches that ended without a winner and have
// already been scored, such as abandoned or no-result fixtures
func (r *MatchRepository) SettledIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id FROM matches
		WHERE ended AND winner IS NULL AND scored_at IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled matches: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

// MarkScored stamps scored_at on the given matches. Rows already stamped are
// left alone, so of two concurrent passes only one marks each match.
func (r *MatchRepository) MarkScored(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE matches SET scored_at = $2, updated_at = NOW()
		WHERE id = ANY($1) AND scored_at IS NULL
	`, ids, at)
	if err != nil {
		return 0, fmt.Errorf("failed to mark matches scored: %w", err)
	}

	return tag.RowsAffected(), nil
}

// UpdateOutcome overwrites the status and winner of a match, bypassing the
// resolved-row guard of Upsert. scored_at is cleared whenever either value
// changes. It reports whether the row changed.
func (r *MatchRepository) UpdateOutcome(ctx context.Context, id, status string, winner sql.NullString) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE matches SET
			status = $2,
			winner = $3,
			scored_at = NULL,
			updated_at = NOW()
		WHERE id = $1
		  AND (status IS DISTINCT FROM $2 OR winner IS DISTINCT FROM $3)
	`, id, status, winner)
	if err != nil {
		return false, fmt.Errorf("failed to update match outcome: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// HasMatchInWindow reports whether a match is live, or is scheduled within
// window of now on either side and not yet ended.
func (r *MatchRepository) HasMatchInWindow(ctx context.Context, now time.Time, window time.Duration) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE NOT ended
			  AND (started OR scheduled_at BETWEEN $1 AND $2)
		)
	`, now.Add(-window), now.Add(window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check live window: %w", err)
	}

	return exists, nil
}

func (r *MatchRepository) list(ctx context.Context, query string, args ...any) ([]*models.Match, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating matches: %w", err)
	}

	return matches, nil
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var (
		match     models.Match
		scheduled *time.Time
	)
	err := row.Scan(
		&match.ID, &match.Team1, &match.Team2, &match.SeriesName, &match.Name, &match.MatchType, &match.Venue,
		&scheduled, &match.Started, &match.Ended, &match.Status, &match.Winner, &match.Score,
		&match.ScoredAt, &match.CreatedAt, &match.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scheduled != nil {
		match.ScheduledAt = scheduled.UTC()
	}
	return &match, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
