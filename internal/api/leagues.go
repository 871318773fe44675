package api

import (
	"net/http"

	"wcpickem/ingestion/internal/auth"
	"wcpickem/ingestion/internal/models"

	"github.com/go-chi/chi/v5"
)

type createLeagueRequest struct {
	Name string `json:"name"`
}

type joinLeagueRequest struct {
	InviteCode string `json:"inviteCode"`
}

// JoinResponse reports a join attempt
type JoinResponse struct {
	League *models.League `json:"league"`
	Joined bool           `json:"joined"`
}

// LeaderboardResponse lists ranked members
type LeaderboardResponse struct {
	LeagueID string                    `json:"leagueId"`
	Entries  []models.LeaderboardEntry `json:"entries"`
}

func (h *Handler) HandleCreateLeague(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createLeagueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	league, err := h.leagues.Create(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, league)
}

func (h *Handler) HandleJoinLeague(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req joinLeagueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	league, joined, err := h.leagues.Join(r.Context(), userID, req.InviteCode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, JoinResponse{League: league, Joined: joined})
}

func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	leagueID := chi.URLParam(r, "leagueID")

	entries, err := h.leagues.Leaderboard(r.Context(), leagueID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{LeagueID: leagueID, Entries: entries})
}

func (h *Handler) HandleDeleteLeague(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.leagues.Delete(r.Context(), userID, chi.URLParam(r, "leagueID")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	err := h.leagues.RemoveMember(r.Context(), userID, chi.URLParam(r, "leagueID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
