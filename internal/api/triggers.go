package api

import (
	"net/http"
	"time"

	"wcpickem/ingestion/internal/metrics"
	"wcpickem/ingestion/internal/pipeline"

	"github.com/rs/zerolog/log"
)

const liveCooldownKey = "cooldown:live-refresh"

// TriggerResponse reports a pipeline run
type TriggerResponse struct {
	OK            bool      `json:"ok"`
	SyncedAt      time.Time `json:"syncedAt,omitempty"`
	MatchesSynced int       `json:"matchesSynced"`
	MatchesScored int       `json:"matchesScored"`
	SyncError     string    `json:"syncError,omitempty"`
	Skipped       string    `json:"skipped,omitempty"`
}

func triggerResponse(sum pipeline.Summary) TriggerResponse {
	resp := TriggerResponse{
		OK:            true,
		SyncedAt:      sum.SyncedAt,
		MatchesSynced: sum.MatchesSynced,
		MatchesScored: sum.MatchesScored,
	}
	if sum.SyncErr != nil {
		resp.SyncError = "feed unavailable"
	}
	return resp
}

// HandleSyncAndScore runs the pipeline for the scheduler or an operator
func (h *Handler) HandleSyncAndScore(w http.ResponseWriter, r *http.Request) {
	sum, err := h.pipeline.SyncAndScore(r.Context())
	if err != nil {
		metrics.RecordTrigger("manual", "failure")
		log.Error().Err(err).Msg("Manual sync-and-score failed")
		writeJSON(w, http.StatusInternalServerError, TriggerResponse{OK: false})
		return
	}

	metrics.RecordTrigger("manual", "success")
	writeJSON(w, http.StatusOK, triggerResponse(sum))
}

// HandleLiveRefresh lets any visitor refresh results while a match is on.
// It is a no-op outside the live window and while the cooldown is held.
func (h *Handler) HandleLiveRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	live, err := h.matches.HasMatchInWindow(ctx, h.now().UTC(), h.cfg.LiveWindow)
	if err != nil {
		metrics.RecordTrigger("live", "failure")
		writeError(w, err)
		return
	}
	if !live {
		metrics.RecordTrigger("live", "skipped")
		writeJSON(w, http.StatusOK, TriggerResponse{OK: true, Skipped: "no live match"})
		return
	}

	if h.cooldown != nil {
		acquired, err := h.cooldown.TryAcquire(ctx, liveCooldownKey, h.cfg.LiveCooldown)
		if err != nil {
			// An unreachable cooldown store counts as held
			log.Warn().Err(err).Msg("Cooldown unavailable, skipping live refresh")
			acquired = false
		}
		if !acquired {
			metrics.RecordTrigger("live", "skipped")
			writeJSON(w, http.StatusOK, TriggerResponse{OK: true, Skipped: "cooldown"})
			return
		}
	}

	sum, err := h.pipeline.SyncAndScore(ctx)
	if err != nil {
		metrics.RecordTrigger("live", "failure")
		log.Error().Err(err).Msg("Live refresh failed")
		writeJSON(w, http.StatusOK, TriggerResponse{OK: false})
		return
	}

	metrics.RecordTrigger("live", "success")
	writeJSON(w, http.StatusOK, triggerResponse(sum))
}
