package api

import (
	"errors"
	"net/http"

	"wcpickem/ingestion/internal/apperror"
	"wcpickem/ingestion/internal/auth"
	"wcpickem/ingestion/internal/margin"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type predictionRequest struct {
	Team   string `json:"team"`
	Margin string `json:"margin"`
}

// PredictionResponse echoes the stored pick
type PredictionResponse struct {
	MatchID string `json:"matchId"`
	Team    string `json:"team"`
	Margin  string `json:"margin"`
}

// HandlePutPrediction stores the caller's pick for a match. A pick on a
// match that has already ended is scored straight away.
func (h *Handler) HandlePutPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)
	matchID := chi.URLParam(r, "matchID")

	var req predictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	match, err := h.matches.GetByID(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, apperror.NotFound("match", matchID))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if !match.HasTeam(req.Team) {
		writeError(w, apperror.ValidationFailed("team", "team is not playing in this match"))
		return
	}
	bucket, ok := margin.Parse(req.Margin)
	if !ok {
		writeError(w, apperror.ValidationFailed("margin", "margin must be one of Narrow, Comfortable, Easy, Thrashing"))
		return
	}
	if h.cfg.LockStartedMatches && (match.Started || match.Ended) {
		writeError(w, apperror.Forbidden("picks are locked once the match has started"))
		return
	}

	pred := &models.Prediction{
		UserID:          userID,
		MatchID:         match.ID,
		PredictedWinner: models.PackPick(req.Team, string(bucket)),
	}
	if err := h.predictions.Upsert(ctx, pred); err != nil {
		writeError(w, err)
		return
	}

	resp := PredictionResponse{MatchID: match.ID, Team: req.Team, Margin: string(bucket)}

	if match.Ended {
		// Scoring failures self-heal on the next sweep
		if _, err := h.scorer.ScoreUser(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to score late pick")
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
