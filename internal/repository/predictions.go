package repository

import (
	"context"
	"errors"
	"fmt"

	"wcpickem/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const predictionColumns = `
	p.user_id, p.match_id, p.predicted_winner, p.points, p.result, p.scored_at, p.created_at, p.updated_at
`

// PredictionRepository handles prediction database operations
type PredictionRepository struct {
	db *Database
}

// Upsert stores a user's pick. Changing a pick clears any previous score.
func (r *PredictionRepository) Upsert(ctx context.Context, pred *models.Prediction) error {
	if pred == nil {
		return fmt.Errorf("prediction cannot be nil")
	}

	query := `
		INSERT INTO predictions (user_id, match_id, predicted_winner)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, match_id) DO UPDATE SET
			predicted_winner = EXCLUDED.predicted_winner,
			points = NULL,
			result = NULL,
			scored_at = NULL,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query, pred.UserID, pred.MatchID, pred.PredictedWinner).
		Scan(&pred.CreatedAt, &pred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}

	pred.Points.Valid = false
	pred.Result.Valid = false
	pred.ScoredAt.Valid = false

	log.Debug().
		Str("user_id", pred.UserID).
		Str("match_id", pred.MatchID).
		Msg("Prediction stored")

	return nil
}

// Get retrieves a single user's pick for a match
func (r *PredictionRepository) Get(ctx context.Context, userID, matchID string) (*models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions p WHERE p.user_id = $1 AND p.match_id = $2`

	pred, err := scanPrediction(r.db.Pool.QueryRow(ctx, query, userID, matchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s/%s: %w", userID, matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	return pred, nil
}

// ListByMatchIDs retrieves every prediction on the given matches
func (r *PredictionRepository) ListByMatchIDs(ctx context.Context, matchIDs []string) ([]*models.Prediction, error) {
	if len(matchIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + predictionColumns + ` FROM predictions p WHERE p.match_id = ANY($1) ORDER BY p.match_id, p.user_id`
	return r.list(ctx, query, matchIDs)
}

// ListUnscoredOnEnded retrieves unscored predictions whose match has ended.
// An empty userID selects every user.
func (r *PredictionRepository) ListUnscoredOnEnded(ctx context.Context, userID string) ([]*models.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE m.ended
		  AND p.scored_at IS NULL
		  AND ($1::text = '' OR p.user_id = $1::text)
		ORDER BY p.match_id, p.user_id
	`
	return r.list(ctx, query, userID)
}

// UpdateScore writes the scoring outcome of a prediction
func (r *PredictionRepository) UpdateScore(ctx context.Context, pred *models.Prediction) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE predictions SET
			points = $3,
			result = $4,
			scored_at = $5,
			updated_at = NOW()
		WHERE user_id = $1 AND match_id = $2
	`, pred.UserID, pred.MatchID, pred.Points, pred.Result, pred.ScoredAt)
	if err != nil {
		return fmt.Errorf("failed to update prediction score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("prediction %s/%s: %w", pred.UserID, pred.MatchID, ErrNotFound)
	}

	return nil
}

// ClearScores resets the score of every prediction, forcing a full rescore
func (r *PredictionRepository) ClearScores(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE predictions SET points = NULL, result = NULL, scored_at = NULL, updated_at = NOW()
		WHERE scored_at IS NOT NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear prediction scores: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PredictionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Prediction, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var preds []*models.Prediction
	for rows.Next() {
		pred, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		preds = append(preds, pred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}

	return preds, nil
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	var pred models.Prediction
	err := row.Scan(
		&pred.UserID, &pred.MatchID, &pred.PredictedWinner,
		&pred.Points, &pred.Result, &pred.ScoredAt,
		&pred.CreatedAt, &pred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pred, nil
}
