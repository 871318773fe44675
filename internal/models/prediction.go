package models

import (
	"database/sql"
	"strings"
	"time"
)

// PredictionResult classifies a scored prediction
type PredictionResult string

const (
	ResultIncorrect     PredictionResult = "incorrect"
	ResultCorrectTeam   PredictionResult = "correct_team"
	ResultCorrectMargin PredictionResult = "correct_margin"
)

// Points awarded per result
const (
	PointsIncorrect     = 0
	PointsCorrectTeam   = 1
	PointsCorrectMargin = 2
)

// pickSeparator splits the packed "<team>|<margin>" value
const pickSeparator = "|"

// Prediction is a user's pick for a single match.
// At most one exists per (user, match).
type Prediction struct {
	UserID  string `db:"user_id"`
	MatchID string `db:"match_id"`

	// Packed as "<team>|<margin>"
	PredictedWinner string `db:"predicted_winner"`

	// Owned by the scoring engine
	Points   sql.NullInt32  `db:"points"`
	Result   sql.NullString `db:"result"`
	ScoredAt sql.NullTime   `db:"scored_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PredictionInput is the user-facing pick submission
type PredictionInput struct {
	MatchID string `json:"matchId"`
	Team    string `json:"team"`
	Margin  string `json:"margin"`
}

// PackPick joins a team and margin into the stored pick format
func PackPick(team, margin string) string {
	if margin == "" {
		return team
	}
	return team + pickSeparator + margin
}

// Pick splits the packed value into team and margin.
// A legacy pick without a separator yields an empty margin.
func (p *Prediction) Pick() (team, margin string) {
	team, margin, _ = strings.Cut(p.PredictedWinner, pickSeparator)
	return strings.TrimSpace(team), strings.TrimSpace(margin)
}

// IsScored returns true once points have been awarded
func (p *Prediction) IsScored() bool {
	return p.ScoredAt.Valid && p.Points.Valid
}

// ApplyScore records the scoring outcome on the prediction
func (p *Prediction) ApplyScore(points int, result PredictionResult, at time.Time) {
	p.Points = sql.NullInt32{Int32: int32(points), Valid: true}
	p.Result = sql.NullString{String: string(result), Valid: true}
	p.ScoredAt = sql.NullTime{Time: at, Valid: true}
}
