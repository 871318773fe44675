// Package api exposes the pipeline triggers, prediction writes and league
// management over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"wcpickem/ingestion/internal/auth"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Runner runs the sync-and-score pipeline
type Runner interface {
	SyncAndScore(ctx context.Context) (pipeline.Summary, error)
}

// MatchReader reads matches
type MatchReader interface {
	GetByID(ctx context.Context, id string) (*models.Match, error)
	HasMatchInWindow(ctx context.Context, now time.Time, window time.Duration) (bool, error)
}

// PredictionWriter stores picks
type PredictionWriter interface {
	Upsert(ctx context.Context, pred *models.Prediction) error
}

// UserScorer settles a user's late picks
type UserScorer interface {
	ScoreUser(ctx context.Context, userID string) (int, error)
}

// Cooldown grants at most one holder per key for ttl
type Cooldown interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LeagueService implements league operations
type LeagueService interface {
	Create(ctx context.Context, userID, name string) (*models.League, error)
	Join(ctx context.Context, userID, inviteCode string) (*models.League, bool, error)
	Leaderboard(ctx context.Context, leagueID string) ([]models.LeaderboardEntry, error)
	Delete(ctx context.Context, userID, leagueID string) error
	RemoveMember(ctx context.Context, userID, leagueID, memberID string) error
}

// Config holds API settings
type Config struct {
	TriggerSecrets     []string
	LiveWindow         time.Duration
	LiveCooldown       time.Duration
	LockStartedMatches bool
}

// Handler serves the API
type Handler struct {
	cfg         Config
	pipeline    Runner
	matches     MatchReader
	predictions PredictionWriter
	scorer      UserScorer
	cooldown    Cooldown
	leagues     LeagueService
	now         func() time.Time
}

// NewHandler creates an API handler
func NewHandler(
	cfg Config,
	runner Runner,
	matches MatchReader,
	predictions PredictionWriter,
	scorer UserScorer,
	cooldown Cooldown,
	leagues LeagueService,
) *Handler {
	return &Handler{
		cfg:         cfg,
		pipeline:    runner,
		matches:     matches,
		predictions: predictions,
		scorer:      scorer,
		cooldown:    cooldown,
		leagues:     leagues,
		now:         time.Now,
	}
}

// Router builds the HTTP routes
func (h *Handler) Router(verifier *auth.TokenVerifier) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireSecret(h.cfg.TriggerSecrets))
			r.Get("/sync-and-score", h.HandleSyncAndScore)
			r.Post("/sync-and-score", h.HandleSyncAndScore)
		})

		r.Post("/live-refresh", h.HandleLiveRefresh)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(verifier))

			r.Put("/matches/{matchID}/prediction", h.HandlePutPrediction)

			r.Post("/leagues", h.HandleCreateLeague)
			r.Post("/leagues/join", h.HandleJoinLeague)
			r.Get("/leagues/{leagueID}/leaderboard", h.HandleLeaderboard)
			r.Delete("/leagues/{leagueID}", h.HandleDeleteLeague)
			r.Delete("/leagues/{leagueID}/members/{userID}", h.HandleRemoveMember)
		})
	})

	return r
}
