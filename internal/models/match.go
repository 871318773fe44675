package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Match represents a tournament fixture in the local store
type Match struct {
	ID          string          `db:"id"` // external match id from the feed
	Team1       string          `db:"team1"`
	Team2       string          `db:"team2"`
	SeriesName  string          `db:"series_name"`
	Name        string          `db:"name"`
	MatchType   string          `db:"match_type"`
	Venue       string          `db:"venue"`
	ScheduledAt time.Time       `db:"scheduled_at"`
	Started     bool            `db:"started"`
	Ended       bool            `db:"ended"`
	Status      string          `db:"status"`
	Winner      sql.NullString  `db:"winner"`
	Score       json.RawMessage `db:"score"`

	// Null means "not yet scored"
	ScoredAt sql.NullTime `db:"scored_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsResolved returns true once the match has ended with a known winner.
// Resolved matches are authoritative and never rewritten from the feed.
func (m *Match) IsResolved() bool {
	return m.Ended && m.Winner.Valid && m.Winner.String != ""
}

// IsScored returns true if the scoring engine has processed the match
func (m *Match) IsScored() bool {
	return m.ScoredAt.Valid
}

// IsLive returns true if the match has started but not ended
func (m *Match) IsLive() bool {
	return m.Started && !m.Ended
}

// HasTeam reports whether team is one of the two sides
func (m *Match) HasTeam(team string) bool {
	return team != "" && (team == m.Team1 || team == m.Team2)
}

// WinnerOrEmpty returns the stored winner or an empty string
func (m *Match) WinnerOrEmpty() string {
	if m.Winner.Valid {
		return m.Winner.String
	}
	return ""
}

// NullString wraps s as a valid sql.NullString, or an invalid one if s is empty
func NullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
