//go:build integration

package repository

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"wcpickem/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMatch(id string) *models.Match {
	return &models.Match{
		ID:          id,
		Team1:       "India",
		Team2:       "Pakistan",
		SeriesName:  "ICC Men's T20 World Cup 2026",
		Name:        "India vs Pakistan, 5th Match",
		MatchType:   "t20",
		ScheduledAt: time.Date(2026, 2, 15, 13, 30, 0, 0, time.UTC),
		Status:      "Match not started",
	}
}

func TestMatchRepository_Upsert(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	m := testMatch("m1")
	require.NoError(t, db.Matches.Upsert(ctx, m))

	got, err := db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "India", got.Team1)
	assert.False(t, got.Winner.Valid)
	assert.True(t, got.ScheduledAt.Equal(m.ScheduledAt))

	m.Started = true
	m.Status = "India opt to bat"
	m.Score = json.RawMessage(`[{"r":45,"w":1,"o":6,"inning":"India Inning 1"}]`)
	require.NoError(t, db.Matches.Upsert(ctx, m))

	got, err = db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.IsLive())
	assert.JSONEq(t, string(m.Score), string(got.Score))
}

func TestMatchRepository_UpsertKeepsWinner(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	m := testMatch("m1")
	m.Started = true
	m.Status = "India won by 7 wkts (Easy)"
	m.Winner = models.NullString("India")
	require.NoError(t, db.Matches.Upsert(ctx, m))

	// A later, less complete write must not erase the winner
	m.Winner = sql.NullString{}
	require.NoError(t, db.Matches.Upsert(ctx, m))

	got, err := db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "India", got.WinnerOrEmpty())
}

func TestMatchRepository_UpsertSkipsResolved(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	m := testMatch("m1")
	m.Started, m.Ended = true, true
	m.Status = "India won by 7 wkts (Easy)"
	m.Winner = models.NullString("India")
	require.NoError(t, db.Matches.Upsert(ctx, m))

	stale := testMatch("m1")
	stale.Status = "Match not started"
	require.NoError(t, db.Matches.Upsert(ctx, stale))

	got, err := db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.Ended, "resolved match must not regress")
	assert.Equal(t, "India won by 7 wkts (Easy)", got.Status)

	ids, err := db.Matches.ResolvedIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "m1")
}

func TestMatchRepository_UpsertClearsScoredAtOnChange(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	m := testMatch("m1")
	m.Started, m.Ended = true, true
	m.Status = "No result"
	require.NoError(t, db.Matches.Upsert(ctx, m))

	marked, err := db.Matches.MarkScored(ctx, []string{"m1"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	// Same data keeps the mark
	require.NoError(t, db.Matches.Upsert(ctx, m))
	got, err := db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, got.IsScored())

	// Status change clears it
	m.Status = "Match abandoned without a ball bowled"
	require.NoError(t, db.Matches.Upsert(ctx, m))
	got, err = db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, got.IsScored())
}

func TestMatchRepository_MarkScoredOnce(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	m := testMatch("m1")
	m.Ended = true
	m.Status = "Pakistan won by 12 runs (Comfortable)"
	m.Winner = models.NullString("Pakistan")
	require.NoError(t, db.Matches.Upsert(ctx, m))

	pending, err := db.Matches.ListUnscoredEnded(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	first, err := db.Matches.MarkScored(ctx, []string{"m1"}, time.Now())
	require.NoError(t, err)
	second, err := db.Matches.MarkScored(ctx, []string{"m1"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(0), second)

	pending, err = db.Matches.ListUnscoredEnded(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMatchRepository_SettledIDs(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	noResult := testMatch("m1")
	noResult.Started, noResult.Ended = true, true
	noResult.Status = "No result"
	require.NoError(t, db.Matches.Upsert(ctx, noResult))

	ids, err := db.Matches.SettledIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, "m1", "unscored matches are not settled")

	_, err = db.Matches.MarkScored(ctx, []string{"m1"}, time.Now())
	require.NoError(t, err)

	ids, err = db.Matches.SettledIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "m1")
}

func TestMatchRepository_UpdateOutcome(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	m := testMatch("m1")
	m.Ended = true
	m.Status = "India won by 7 wkts"
	m.Winner = models.NullString("India")
	require.NoError(t, db.Matches.Upsert(ctx, m))
	_, err := db.Matches.MarkScored(ctx, []string{"m1"}, time.Now())
	require.NoError(t, err)

	changed, err := db.Matches.UpdateOutcome(ctx, "m1", "India won by 7 wkts (Easy)", m.Winner)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = db.Matches.UpdateOutcome(ctx, "m1", "India won by 7 wkts (Easy)", m.Winner)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := db.Matches.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "India won by 7 wkts (Easy)", got.Status)
	assert.False(t, got.IsScored())
}

func TestMatchRepository_HasMatchInWindow(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	now := time.Date(2026, 2, 15, 13, 0, 0, 0, time.UTC)

	m := testMatch("m1")
	require.NoError(t, db.Matches.Upsert(ctx, m))

	live, err := db.Matches.HasMatchInWindow(ctx, now, 45*time.Minute)
	require.NoError(t, err)
	assert.True(t, live)

	live, err = db.Matches.HasMatchInWindow(ctx, now, 15*time.Minute)
	require.NoError(t, err)
	assert.False(t, live)
}

func TestMatchRepository_GetByIDNotFound(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	_, err := db.Matches.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
