package models

import (
	"encoding/json"
	"strings"
	"time"
)

// FeedStatusSuccess is the envelope status CricAPI reports for a usable response
const FeedStatusSuccess = "success"

// feedTimeLayout is the zone-less layout of CricAPI's dateTimeGMT field
const feedTimeLayout = "2006-01-02T15:04:05"

// APIUsage is the quota block CricAPI attaches to every response
type APIUsage struct {
	HitsToday int     `json:"hitsToday"`
	HitsUsed  int     `json:"hitsUsed"`
	HitsLimit int     `json:"hitsLimit"`
	Credits   int     `json:"credits"`
	Server    int     `json:"server"`
	QueryTime float64 `json:"queryTime"`
}

// SeriesInfo describes the tournament returned by series_info
type SeriesInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"startdate"`
	EndDate   string `json:"enddate"`
	Matches   int    `json:"matches"`
}

// SeriesInfoResponse is the series_info envelope (coarse match list)
type SeriesInfoResponse struct {
	Status string    `json:"status"`
	Reason string    `json:"reason,omitempty"`
	Info   *APIUsage `json:"info,omitempty"`
	Data   struct {
		Info      SeriesInfo  `json:"info"`
		MatchList []FeedMatch `json:"matchList"`
	} `json:"data"`
}

// MatchInfoResponse is the match_info envelope (per-match detail)
type MatchInfoResponse struct {
	Status string     `json:"status"`
	Reason string     `json:"reason,omitempty"`
	Info   *APIUsage  `json:"info,omitempty"`
	Data   *FeedMatch `json:"data"`
}

// InningsScore is one entry of the detail score breakdown
type InningsScore struct {
	Runs    int     `json:"r"`
	Wickets int     `json:"w"`
	Overs   float64 `json:"o"`
	Inning  string  `json:"inning"`
}

// FeedMatch is a match as reported by the feed, either from the series
// list (coarse) or from match_info (detail). Flags are pointers so an
// omitted field can be told apart from an explicit false.
type FeedMatch struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	MatchType    string         `json:"matchType"`
	Status       string         `json:"status"`
	Venue        string         `json:"venue"`
	Date         string         `json:"date"`
	DateTimeGMT  string         `json:"dateTimeGMT"`
	Teams        []string       `json:"teams"`
	Winner       string         `json:"winner,omitempty"`
	MatchWinner  string         `json:"matchWinner,omitempty"`
	MatchStarted *bool          `json:"matchStarted,omitempty"`
	MatchEnded   *bool          `json:"matchEnded,omitempty"`
	Score        []InningsScore `json:"score,omitempty"`
}

// Team1 returns the first listed team or an empty string
func (fm *FeedMatch) Team1() string {
	if len(fm.Teams) > 0 {
		return fm.Teams[0]
	}
	return ""
}

// Team2 returns the second listed team or an empty string
func (fm *FeedMatch) Team2() string {
	if len(fm.Teams) > 1 {
		return fm.Teams[1]
	}
	return ""
}

// WinnerName returns the explicit winner field, whichever key the feed used
func (fm *FeedMatch) WinnerName() string {
	if w := strings.TrimSpace(fm.MatchWinner); w != "" {
		return w
	}
	return strings.TrimSpace(fm.Winner)
}

// Started reports the started flag, treating an omitted flag as false
func (fm *FeedMatch) Started() bool {
	return fm.MatchStarted != nil && *fm.MatchStarted
}

// Ended reports the ended flag, treating an omitted flag as false
func (fm *FeedMatch) Ended() bool {
	return fm.MatchEnded != nil && *fm.MatchEnded
}

// ScheduledAt parses dateTimeGMT as UTC. The zero time is returned when the
// field is missing or malformed.
func (fm *FeedMatch) ScheduledAt() time.Time {
	if fm.DateTimeGMT == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(feedTimeLayout, fm.DateTimeGMT, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, fm.DateTimeGMT); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// IsYouth reports whether the fixture belongs to an under-19 competition.
// The tournament feed interleaves U19 fixtures that the league does not play.
func (fm *FeedMatch) IsYouth() bool {
	if strings.Contains(fm.Name, "U19") {
		return true
	}
	for _, t := range fm.Teams {
		if strings.Contains(t, "U19") {
			return true
		}
	}
	return false
}

// ScoreSnapshot returns the score breakdown as JSON, or nil when absent
func (fm *FeedMatch) ScoreSnapshot() json.RawMessage {
	if len(fm.Score) == 0 {
		return nil
	}
	data, err := json.Marshal(fm.Score)
	if err != nil {
		return nil
	}
	return data
}

// ToMatch converts the coarse feed attributes to a Match model.
// Outcome fields (winner, flags, status) are filled in by the caller.
func (fm *FeedMatch) ToMatch(seriesName string) *Match {
	return &Match{
		ID:          fm.ID,
		Team1:       fm.Team1(),
		Team2:       fm.Team2(),
		SeriesName:  seriesName,
		Name:        fm.Name,
		MatchType:   fm.MatchType,
		Venue:       fm.Venue,
		ScheduledAt: fm.ScheduledAt(),
		Started:     fm.Started(),
		Ended:       fm.Ended(),
		Status:      fm.Status,
		Score:       fm.ScoreSnapshot(),
	}
}
