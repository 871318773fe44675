package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seriesInfoBody = `{
  "apikey": "redacted",
  "status": "success",
  "info": {"hitsToday": 12, "hitsUsed": 1, "hitsLimit": 100},
  "data": {
    "info": {"id": "series-1", "name": "ICC Men's T20 World Cup 2026", "matches": 2},
    "matchList": [
      {"id": "m1", "name": "India vs Pakistan", "matchType": "t20", "status": "India won by 7 wkts",
       "dateTimeGMT": "2026-02-15T13:30:00", "teams": ["India", "Pakistan"], "matchStarted": true, "matchEnded": true},
      {"id": "m2", "name": "England vs Italy", "matchType": "t20", "status": "Match not started",
       "dateTimeGMT": "2026-02-16T09:30:00", "teams": ["England", "Italy"], "matchStarted": false, "matchEnded": false}
    ]
  }
}`

const matchInfoBody = `{
  "status": "success",
  "data": {"id": "m1", "status": "India won by 7 wkts", "teams": ["India", "Pakistan"],
           "matchWinner": "India", "matchStarted": true, "matchEnded": true,
           "score": [{"r": 151, "w": 8, "o": 20, "inning": "Pakistan Inning 1"}]}
}`

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestFetchSeriesMatches(t *testing.T) {
	var gotKey, gotID, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apikey")
		gotID = r.URL.Query().Get("id")
		w.Write([]byte(seriesInfoBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123", "series-1", 2*time.Second)
	matches, err := c.FetchSeriesMatches(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/series_info", gotPath)
	assert.Equal(t, "key-123", gotKey)
	assert.Equal(t, "series-1", gotID)
	require.Len(t, matches, 2)
	assert.Equal(t, "m1", matches[0].ID)
	assert.True(t, matches[0].Ended())
	assert.Equal(t, "Italy", matches[1].Team2())
}

func TestFetchSeriesMatches_NonSuccessEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failure","reason":"hits today exceeded hits limit"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", time.Second)
	_, err := c.FetchSeriesMatches(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedStatus)
	assert.Contains(t, err.Error(), "hits limit")
}

func TestFetchSeriesMatches_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", time.Second)
	_, err := c.FetchSeriesMatches(context.Background())
	assert.Error(t, err)
}

func TestFetchMatchInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/match_info", r.URL.Path)
		assert.Equal(t, "m1", r.URL.Query().Get("id"))
		w.Write([]byte(matchInfoBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", time.Second)
	d, err := c.FetchMatchInfo(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "India", d.WinnerName())
	assert.True(t, d.Ended())
	require.Len(t, d.Score, 1)
	assert.Equal(t, 151, d.Score[0].Runs)
}

func TestGet_RetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(matchInfoBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", time.Second).WithRetry(2, time.Millisecond)
	_, err := c.FetchMatchInfo(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_DoesNotRetryAuthFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", "s", time.Second).WithRetry(3, time.Millisecond)
	_, err := c.FetchSeriesMatches(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotContains(t, err.Error(), "bad", "api key must not leak into errors")
}

func TestFetch_UsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(matchInfoBody))
	}))
	defer srv.Close()

	cache := newMemCache()
	c := NewClient(srv.URL, "k", "s", time.Second).WithCache(cache, time.Minute)

	for i := 0; i < 3; i++ {
		d, err := c.FetchMatchInfo(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "m1", d.ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "subsequent reads are served from cache")
}

func TestFetch_FailureEnvelopeNotCached(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"status":"failure","reason":"Invalid match"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "s", time.Second).WithCache(newMemCache(), time.Minute)
	_, err := c.FetchMatchInfo(context.Background(), "nope")
	assert.Error(t, err)
	_, err = c.FetchMatchInfo(context.Background(), "nope")
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "k", "s", time.Second).WithRetry(3, time.Second)
	_, err := c.FetchSeriesMatches(ctx)
	assert.Error(t, err)
}
