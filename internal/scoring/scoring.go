// Package scoring converts resolved match outcomes into prediction points
// and membership totals.
//
// Every write is an assignment, never an increment: a prediction's points are
// set from the match outcome and membership totals are recomputed from the
// predictions. Running a pass twice, or two passes at once, converges on the
// same state.
package scoring

import (
	"context"
	"fmt"
	"time"

	"wcpickem/ingestion/internal/margin"
	"wcpickem/ingestion/internal/metrics"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/outcome"

	"github.com/rs/zerolog/log"
)

// MatchStore is the match repository surface used for scoring
type MatchStore interface {
	ListUnscoredEnded(ctx context.Context) ([]*models.Match, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.Match, error)
	MarkScored(ctx context.Context, ids []string, at time.Time) (int64, error)
}

// PredictionStore is the prediction repository surface used for scoring
type PredictionStore interface {
	ListByMatchIDs(ctx context.Context, matchIDs []string) ([]*models.Prediction, error)
	ListUnscoredOnEnded(ctx context.Context, userID string) ([]*models.Prediction, error)
	UpdateScore(ctx context.Context, pred *models.Prediction) error
}

// MembershipStore recomputes cached membership totals
type MembershipStore interface {
	RecomputePoints(ctx context.Context) (int64, error)
	RecomputePointsForUser(ctx context.Context, userID string) (int64, error)
}

// Engine scores predictions
type Engine struct {
	matches     MatchStore
	predictions PredictionStore
	memberships MembershipStore
	now         func() time.Time
}

// NewEngine creates a scoring engine
func NewEngine(matches MatchStore, predictions PredictionStore, memberships MembershipStore) *Engine {
	return &Engine{
		matches:     matches,
		predictions: predictions,
		memberships: memberships,
		now:         time.Now,
	}
}

// Evaluate scores a packed "<team>|<margin>" pick against a finished match.
// An unknown winner never matches.
func Evaluate(match *models.Match, pick string) (int, models.PredictionResult) {
	p := models.Prediction{PredictedWinner: pick}
	team, predictedMargin := p.Pick()

	winner := outcome.EffectiveWinner(match)
	if winner == "" || team != winner {
		return models.PointsIncorrect, models.ResultIncorrect
	}

	actual, ok := margin.Classify(match.Status)
	if ok && predictedMargin != "" {
		if b, valid := margin.Parse(predictedMargin); valid && b == actual {
			return models.PointsCorrectMargin, models.ResultCorrectMargin
		}
	}

	return models.PointsCorrectTeam, models.ResultCorrectTeam
}

// ScoreUnscored scores every ended match that has not been scored yet and
// returns the number of matches marked as scored by this pass.
func (e *Engine) ScoreUnscored(ctx context.Context) (int, error) {
	start := e.now()

	pending, err := e.matches.ListUnscoredEnded(ctx)
	if err != nil {
		metrics.RecordSync("scoring", "failure", e.now().Sub(start).Seconds())
		return 0, fmt.Errorf("failed to list unscored matches: %w", err)
	}
	if len(pending) == 0 {
		log.Debug().Msg("No unscored matches")
		return 0, nil
	}

	byID := make(map[string]*models.Match, len(pending))
	ids := make([]string, 0, len(pending))
	for _, m := range pending {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	preds, err := e.predictions.ListByMatchIDs(ctx, ids)
	if err != nil {
		metrics.RecordSync("scoring", "failure", e.now().Sub(start).Seconds())
		return 0, fmt.Errorf("failed to load predictions: %w", err)
	}

	now := e.now()
	failed := make(map[string]bool)
	scoredPreds := 0

	for _, pred := range preds {
		match, ok := byID[pred.MatchID]
		if !ok {
			continue
		}
		if err := e.scorePrediction(ctx, match, pred, now); err != nil {
			failed[pred.MatchID] = true
			continue
		}
		scoredPreds++
	}

	// Matches with a failed prediction write stay pending for the next pass
	toMark := make([]string, 0, len(ids))
	for _, id := range ids {
		if !failed[id] {
			toMark = append(toMark, id)
		}
	}

	marked, err := e.matches.MarkScored(ctx, toMark, now)
	if err != nil {
		metrics.RecordSync("scoring", "failure", e.now().Sub(start).Seconds())
		return 0, fmt.Errorf("failed to mark matches scored: %w", err)
	}
	metrics.RecordMatchesScored(int(marked))

	if len(preds) > 0 {
		if _, err := e.memberships.RecomputePoints(ctx); err != nil {
			metrics.RecordError("scoring", "recompute")
			log.Error().Err(err).Msg("Failed to recompute membership points")
		}
	}

	metrics.RecordSync("scoring", "success", e.now().Sub(start).Seconds())
	log.Info().
		Int("matches", len(pending)).
		Int64("marked", marked).
		Int("predictions", scoredPreds).
		Int("deferred", len(failed)).
		Dur("duration", e.now().Sub(start)).
		Msg("Scoring pass complete")

	return int(marked), nil
}

// ScoreUser settles a user's unscored picks on matches that have already
// ended, then refreshes that user's membership totals. It returns the number
// of predictions scored.
func (e *Engine) ScoreUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	return e.scoreLatePicks(ctx, userID)
}

// ScoreLatePicks settles unscored picks of every user on ended matches.
// These appear when a pick is changed after the match was already scored.
func (e *Engine) ScoreLatePicks(ctx context.Context) (int, error) {
	return e.scoreLatePicks(ctx, "")
}

func (e *Engine) scoreLatePicks(ctx context.Context, userID string) (int, error) {
	preds, err := e.predictions.ListUnscoredOnEnded(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list unscored predictions: %w", err)
	}
	if len(preds) == 0 {
		return 0, nil
	}

	ids := uniqueMatchIDs(preds)
	matches, err := e.matches.ListByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load matches: %w", err)
	}
	byID := make(map[string]*models.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}

	now := e.now()
	scored := 0
	for _, pred := range preds {
		match, ok := byID[pred.MatchID]
		if !ok || !match.Ended {
			continue
		}
		if err := e.scorePrediction(ctx, match, pred, now); err != nil {
			continue
		}
		scored++
	}

	if userID != "" {
		_, err = e.memberships.RecomputePointsForUser(ctx, userID)
	} else {
		_, err = e.memberships.RecomputePoints(ctx)
	}
	if err != nil {
		return scored, fmt.Errorf("failed to recompute membership points: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Int("predictions", scored).
		Msg("Late picks scored")

	return scored, nil
}

func (e *Engine) scorePrediction(ctx context.Context, match *models.Match, pred *models.Prediction, at time.Time) error {
	points, result := Evaluate(match, pred.PredictedWinner)
	pred.ApplyScore(points, result, at)

	if err := e.predictions.UpdateScore(ctx, pred); err != nil {
		metrics.RecordError("scoring", "prediction_update")
		log.Error().
			Err(err).
			Str("user_id", pred.UserID).
			Str("match_id", pred.MatchID).
			Msg("Failed to update prediction score")
		return err
	}

	metrics.RecordPredictionScored(string(result))
	return nil
}

func uniqueMatchIDs(preds []*models.Prediction) []string {
	seen := make(map[string]struct{}, len(preds))
	ids := make([]string, 0, len(preds))
	for _, p := range preds {
		if _, ok := seen[p.MatchID]; ok {
			continue
		}
		seen[p.MatchID] = struct{}{}
		ids = append(ids, p.MatchID)
	}
	return ids
}
