package models

import "time"

// League is a private group of players competing on the same fixtures
type League struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	InviteCode string    `db:"invite_code" json:"inviteCode"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Membership links a user to a league. Points is a cached roll-up of the
// user's scored predictions and is always recomputed, never incremented.
type Membership struct {
	UserID   string    `db:"user_id" json:"userId"`
	LeagueID string    `db:"league_id" json:"leagueId"`
	Points   int       `db:"points" json:"points"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

// LeaderboardEntry is a ranked membership row
type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	UserID   string    `json:"userId"`
	Points   int       `json:"points"`
	JoinedAt time.Time `json:"joinedAt"`
	IsOwner  bool      `json:"isOwner"`
}

// OwnerOf returns the earliest-joined member, or nil for an empty league.
// Ties on join time are broken by user id so the result is stable.
func OwnerOf(members []*Membership) *Membership {
	var owner *Membership
	for _, m := range members {
		if owner == nil || m.JoinedAt.Before(owner.JoinedAt) ||
			(m.JoinedAt.Equal(owner.JoinedAt) && m.UserID < owner.UserID) {
			owner = m
		}
	}
	return owner
}
