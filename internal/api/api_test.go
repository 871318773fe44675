package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wcpickem/ingestion/internal/auth"
	"wcpickem/ingestion/internal/league"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/pipeline"
	"wcpickem/ingestion/internal/scoring"
	"wcpickem/ingestion/internal/storetest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionSecret = "session-secret-for-tests-0001"

var testNow = time.Date(2026, 2, 15, 13, 0, 0, 0, time.UTC)

type stubRunner struct {
	calls int32
	sum   pipeline.Summary
	err   error
}

func (s *stubRunner) SyncAndScore(context.Context) (pipeline.Summary, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.sum, s.err
}

type testEnv struct {
	store  *storetest.Store
	runner *stubRunner
	server *httptest.Server
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store := storetest.New()
	runner := &stubRunner{sum: pipeline.Summary{SyncedAt: testNow, MatchesSynced: 4, MatchesScored: 1}}
	verifier, err := auth.NewTokenVerifier(sessionSecret)
	require.NoError(t, err)

	cooldown := NewLocalCooldown()
	cooldown.now = func() time.Time { return testNow }

	h := NewHandler(
		cfg,
		runner,
		store.Matches,
		store.Predictions,
		scoring.NewEngine(store.Matches, store.Predictions, store.Memberships),
		cooldown,
		league.NewService(store.Leagues, store.Memberships),
	)
	h.now = func() time.Time { return testNow }

	srv := httptest.NewServer(h.Router(verifier))
	t.Cleanup(srv.Close)

	return &testEnv{store: store, runner: runner, server: srv}
}

func sessionToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(sessionSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestSyncAndScore_RequiresSecret(t *testing.T) {
	env := newTestEnv(t, Config{TriggerSecrets: []string{"sync-secret", "cron-secret"}})

	resp := env.do(t, http.MethodPost, "/api/sync-and-score", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/sync-and-score", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(0), atomic.LoadInt32(&env.runner.calls))

	resp = env.do(t, http.MethodGet, "/api/sync-and-score", "cron-secret", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TriggerResponse
	decode(t, resp, &body)
	assert.True(t, body.OK)
	assert.Equal(t, 4, body.MatchesSynced)
	assert.Equal(t, 1, body.MatchesScored)
	assert.True(t, body.SyncedAt.Equal(testNow))
}

func TestSyncAndScore_ReportsFeedFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.runner.sum.SyncErr = errors.New("503 from upstream with details")

	resp := env.do(t, http.MethodPost, "/api/sync-and-score", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body TriggerResponse
	decode(t, resp, &body)
	assert.True(t, body.OK)
	assert.Equal(t, "feed unavailable", body.SyncError)
}

func TestSyncAndScore_PipelineFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.runner.err = errors.New("db down")

	resp := env.do(t, http.MethodPost, "/api/sync-and-score", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLiveRefresh(t *testing.T) {
	env := newTestEnv(t, Config{LiveWindow: 30 * time.Minute, LiveCooldown: time.Minute})

	var body TriggerResponse
	resp := env.do(t, http.MethodPost, "/api/live-refresh", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, "no live match", body.Skipped)
	assert.Equal(t, int32(0), atomic.LoadInt32(&env.runner.calls))

	env.store.Matches.Put(&models.Match{ID: "m1", Team1: "India", Team2: "Pakistan", ScheduledAt: testNow.Add(20 * time.Minute)})

	resp = env.do(t, http.MethodPost, "/api/live-refresh", "", nil)
	body = TriggerResponse{}
	decode(t, resp, &body)
	assert.Empty(t, body.Skipped)
	assert.Equal(t, 4, body.MatchesSynced)

	// Second visitor inside the cooldown does not hit the feed
	resp = env.do(t, http.MethodPost, "/api/live-refresh", "", nil)
	body = TriggerResponse{}
	decode(t, resp, &body)
	assert.Equal(t, "cooldown", body.Skipped)
	assert.Equal(t, int32(1), atomic.LoadInt32(&env.runner.calls))
}

func TestPutPrediction(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Matches.Put(&models.Match{ID: "m1", Team1: "India", Team2: "Pakistan", ScheduledAt: testNow.Add(time.Hour)})
	token := sessionToken(t, "alice")

	resp := env.do(t, http.MethodPut, "/api/matches/m1/prediction", "", map[string]string{"team": "India", "margin": "Easy"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/matches/m1/prediction", token, map[string]string{"team": "India", "margin": "easy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body PredictionResponse
	decode(t, resp, &body)
	assert.Equal(t, "Easy", body.Margin)

	p, err := env.store.Predictions.Get(context.Background(), "alice", "m1")
	require.NoError(t, err)
	assert.Equal(t, "India|Easy", p.PredictedWinner)
	assert.False(t, p.IsScored())
}

func TestPutPrediction_Validation(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.Matches.Put(&models.Match{ID: "m1", Team1: "India", Team2: "Pakistan"})
	token := sessionToken(t, "alice")

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"unknown match", "/api/matches/nope/prediction", map[string]string{"team": "India", "margin": "Easy"}, http.StatusNotFound},
		{"team not playing", "/api/matches/m1/prediction", map[string]string{"team": "England", "margin": "Easy"}, http.StatusBadRequest},
		{"bad margin", "/api/matches/m1/prediction", map[string]string{"team": "India", "margin": "Huge"}, http.StatusBadRequest},
		{"missing margin", "/api/matches/m1/prediction", map[string]string{"team": "India"}, http.StatusBadRequest},
		{"unknown field", "/api/matches/m1/prediction", map[string]string{"team": "India", "margin": "Easy", "x": "y"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPut, tt.path, token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPutPrediction_LockedAfterStart(t *testing.T) {
	env := newTestEnv(t, Config{LockStartedMatches: true})
	env.store.Matches.Put(&models.Match{ID: "m1", Team1: "India", Team2: "Pakistan", Started: true})

	resp := env.do(t, http.MethodPut, "/api/matches/m1/prediction", sessionToken(t, "alice"),
		map[string]string{"team": "India", "margin": "Easy"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPutPrediction_LatePickScoredImmediately(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	env.store.Matches.Put(&models.Match{
		ID: "m1", Team1: "India", Team2: "Pakistan", Started: true, Ended: true,
		Status: "India won by 7 wkts (Easy)", Winner: models.NullString("India"),
	})
	require.NoError(t, env.store.Leagues.Create(ctx, &models.League{ID: "l1", Name: "Office", InviteCode: "AAA111"}))
	_, err := env.store.Memberships.Add(ctx, &models.Membership{UserID: "alice", LeagueID: "l1"})
	require.NoError(t, err)

	resp := env.do(t, http.MethodPut, "/api/matches/m1/prediction", sessionToken(t, "alice"),
		map[string]string{"team": "India", "margin": "Easy"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p, err := env.store.Predictions.Get(ctx, "alice", "m1")
	require.NoError(t, err)
	assert.True(t, p.IsScored())
	assert.Equal(t, 2, env.store.Memberships.Get("alice", "l1").Points)
}

func TestLeagueFlow(t *testing.T) {
	env := newTestEnv(t, Config{})
	alice, bob := sessionToken(t, "alice"), sessionToken(t, "bob")

	resp := env.do(t, http.MethodPost, "/api/leagues", alice, map[string]string{"name": "Office"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.League
	decode(t, resp, &created)
	require.NotEmpty(t, created.InviteCode)

	resp = env.do(t, http.MethodPost, "/api/leagues/join", bob, map[string]string{"inviteCode": created.InviteCode})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined JoinResponse
	decode(t, resp, &joined)
	assert.True(t, joined.Joined)
	assert.Equal(t, created.ID, joined.League.ID)

	resp = env.do(t, http.MethodGet, "/api/leagues/"+created.ID+"/leaderboard", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board LeaderboardResponse
	decode(t, resp, &board)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "alice", board.Entries[0].UserID)
	assert.True(t, board.Entries[0].IsOwner)

	resp = env.do(t, http.MethodDelete, "/api/leagues/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/leagues/"+created.ID+"/members/bob", alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/leagues/"+created.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/leagues/"+created.ID+"/leaderboard", alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinLeague_UnknownCode(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.do(t, http.MethodPost, "/api/leagues/join", sessionToken(t, "bob"), map[string]string{"inviteCode": "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "not_found", body.Error)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLocalCooldown(t *testing.T) {
	c := NewLocalCooldown()
	now := testNow
	c.now = func() time.Time { return now }

	ok, _ := c.TryAcquire(context.Background(), "k", time.Minute)
	assert.True(t, ok)
	ok, _ = c.TryAcquire(context.Background(), "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = c.TryAcquire(context.Background(), "k", time.Minute)
	assert.True(t, ok)
}
