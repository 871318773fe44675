package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"wcpickem/ingestion/internal/metrics"
	"wcpickem/ingestion/internal/models"

	"github.com/rs/zerolog/log"
)

// Endpoint paths relative to the CricAPI base URL
const (
	endpointSeriesInfo = "series_info"
	endpointMatchInfo  = "match_info"
)

// ErrFeedStatus is returned when the feed answers with a non-success envelope
var ErrFeedStatus = errors.New("feed reported non-success status")

// ResponseCache stores raw feed payloads for a short time so that
// overlapping triggers do not spend API quota twice
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Client is the CricAPI client
type Client struct {
	baseURL     string
	apiKey      string
	seriesID    string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
	maxRetries  int
	retryDelay  time.Duration
	cache       ResponseCache
	cacheTTL    time.Duration
}

// NewClient creates a new CricAPI client
func NewClient(baseURL, apiKey, seriesID string, timeout time.Duration) *Client {
	// The feed is metered, keep concurrency low
	rateLimiter := make(chan struct{}, 4)
	for i := 0; i < cap(rateLimiter); i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		seriesID:    seriesID,
		rateLimiter: rateLimiter,
		maxRetries:  2,
		retryDelay:  1 * time.Second,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithRetry overrides the retry policy
func (c *Client) WithRetry(maxRetries int, delay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.retryDelay = delay
	return c
}

// WithCache enables response caching for ttl
func (c *Client) WithCache(cache ResponseCache, ttl time.Duration) *Client {
	if cache != nil && ttl > 0 {
		c.cache = cache
		c.cacheTTL = ttl
	}
	return c
}

// SeriesID returns the configured tournament identifier
func (c *Client) SeriesID() string {
	return c.seriesID
}

// get performs a GET request to CricAPI with retry logic and rate limiting
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, endpoint)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, status, err := c.do(ctx, reqURL, endpoint, params)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries && ctx.Err() == nil {
				continue
			}
			return nil, lastErr
		}

		switch status {
		case http.StatusOK:
			log.Debug().
				Str("endpoint", endpoint).
				Int("status", status).
				Int("size", len(body)).
				Msg("API request successful")
			return body, nil

		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = fmt.Errorf("API returned retryable status %d: %s", status, string(body))
			if attempt < c.maxRetries {
				log.Warn().
					Str("endpoint", endpoint).
					Int("status", status).
					Int("attempt", attempt+1).
					Msg("Received retryable error, will retry")
				continue
			}
			return nil, lastErr

		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("API authentication failed (status %d)", status)

		default:
			return nil, fmt.Errorf("API returned status %d: %s", status, string(body))
		}
	}

	return nil, lastErr
}

// do executes a single request while holding a rate limiter slot
func (c *Client) do(ctx context.Context, reqURL, endpoint string, params map[string]string) ([]byte, int, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-c.rateLimiter:
	}
	defer func() { c.rateLimiter <- struct{}{} }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	for key, value := range params {
		q.Set(key, value)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "wcpickem-ingestion/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
		// url.Error embeds the full URL, which carries the API key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, 0, fmt.Errorf("API request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordAPICall(endpoint, "error", time.Since(start).Seconds())
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	metrics.RecordAPICall(endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start).Seconds())
	return body, resp.StatusCode, nil
}

// fetch returns the payload for endpoint, serving it from cache when possible
func (c *Client) fetch(ctx context.Context, endpoint, id string) ([]byte, bool, error) {
	key := fmt.Sprintf("feed:%s:%s", endpoint, id)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
			metrics.RecordCacheHit()
			return []byte(cached), true, nil
		}
		metrics.RecordCacheMiss()
	}

	body, err := c.get(ctx, endpoint, map[string]string{"id": id})
	if err != nil {
		return nil, false, err
	}
	return body, false, nil
}

func (c *Client) store(ctx context.Context, endpoint, id string, body []byte) {
	if c.cache == nil {
		return
	}
	key := fmt.Sprintf("feed:%s:%s", endpoint, id)
	if err := c.cache.Set(ctx, key, string(body), c.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache feed response")
	}
}

// FetchSeriesMatches fetches the coarse match list for the configured series
func (c *Client) FetchSeriesMatches(ctx context.Context) ([]models.FeedMatch, error) {
	body, cached, err := c.fetch(ctx, endpointSeriesInfo, c.seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series info: %w", err)
	}

	var resp models.SeriesInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal series info: %w", err)
	}

	if resp.Status != models.FeedStatusSuccess {
		return nil, fmt.Errorf("%w: %s (%s)", ErrFeedStatus, resp.Status, resp.Reason)
	}

	if resp.Info != nil {
		metrics.RecordAPIUsage(resp.Info.HitsToday, resp.Info.HitsLimit)
	}
	if !cached {
		c.store(ctx, endpointSeriesInfo, c.seriesID, body)
	}

	return resp.Data.MatchList, nil
}

// FetchMatchInfo fetches the detail record for a single match
func (c *Client) FetchMatchInfo(ctx context.Context, matchID string) (*models.FeedMatch, error) {
	body, cached, err := c.fetch(ctx, endpointMatchInfo, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch match info: %w", err)
	}

	var resp models.MatchInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match info: %w", err)
	}

	if resp.Status != models.FeedStatusSuccess || resp.Data == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrFeedStatus, resp.Status, resp.Reason)
	}

	if resp.Info != nil {
		metrics.RecordAPIUsage(resp.Info.HitsToday, resp.Info.HitsLimit)
	}
	if !cached {
		c.store(ctx, endpointMatchInfo, matchID, body)
	}

	return resp.Data, nil
}
