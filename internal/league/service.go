// Package league manages private leagues: creation, joining by invite code,
// leaderboards and owner-only administration.
package league

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"wcpickem/ingestion/internal/apperror"
	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	MaxNameLength    = 60
	InviteCodeLength = 6

	// inviteAlphabet matches the codes handed out so far: upper-case base36
	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	maxCodeAttempts = 5
)

// LeagueStore persists leagues
type LeagueStore interface {
	Create(ctx context.Context, league *models.League) error
	GetByID(ctx context.Context, id string) (*models.League, error)
	GetByInviteCode(ctx context.Context, code string) (*models.League, error)
	Delete(ctx context.Context, id string) error
}

// MembershipStore persists league memberships
type MembershipStore interface {
	Add(ctx context.Context, m *models.Membership) (bool, error)
	Remove(ctx context.Context, userID, leagueID string) (bool, error)
	ListByLeague(ctx context.Context, leagueID string) ([]*models.Membership, error)
}

// Service implements league operations
type Service struct {
	leagues     LeagueStore
	memberships MembershipStore
	newCode     func() (string, error)
}

// NewService creates a league service
func NewService(leagues LeagueStore, memberships MembershipStore) *Service {
	return &Service{
		leagues:     leagues,
		memberships: memberships,
		newCode:     GenerateInviteCode,
	}
}

// Create makes a new league and joins the creator to it. The creator is the
// first member and therefore the owner.
func (s *Service) Create(ctx context.Context, userID, name string) (*models.League, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "league name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("league name must be at most %d characters", MaxNameLength))
	}

	var league *models.League
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generating invite code: %w", err)
		}

		candidate := &models.League{ID: uuid.NewString(), Name: name, InviteCode: code}
		err = s.leagues.Create(ctx, candidate)
		if errors.Is(err, repository.ErrDuplicate) {
			log.Debug().Str("invite_code", code).Msg("Invite code collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating league: %w", err)
		}
		league = candidate
		break
	}
	if league == nil {
		return nil, fmt.Errorf("creating league: no free invite code after %d attempts", maxCodeAttempts)
	}

	if _, err := s.memberships.Add(ctx, &models.Membership{UserID: userID, LeagueID: league.ID}); err != nil {
		if delErr := s.leagues.Delete(ctx, league.ID); delErr != nil {
			log.Error().Err(delErr).Str("league_id", league.ID).Msg("Failed to roll back league without owner")
		}
		return nil, fmt.Errorf("joining creator to league: %w", err)
	}

	log.Info().
		Str("league_id", league.ID).
		Str("user_id", userID).
		Msg("League created")

	return league, nil
}

// Join adds the user to the league with the given invite code. Joining a
// league twice is a no-op; joined reports whether a membership was created.
func (s *Service) Join(ctx context.Context, userID, inviteCode string) (league *models.League, joined bool, err error) {
	code := strings.ToUpper(strings.TrimSpace(inviteCode))
	if code == "" {
		return nil, false, apperror.ValidationFailed("inviteCode", "invite code is required")
	}

	league, err = s.leagues.GetByInviteCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperror.NotFound("league", code)
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up invite code: %w", err)
	}

	joined, err = s.memberships.Add(ctx, &models.Membership{UserID: userID, LeagueID: league.ID})
	if err != nil {
		return nil, false, fmt.Errorf("joining league: %w", err)
	}

	if joined {
		log.Info().Str("league_id", league.ID).Str("user_id", userID).Msg("User joined league")
	}

	return league, joined, nil
}

// Leaderboard returns the league's members ranked by points. Ties keep join
// order.
func (s *Service) Leaderboard(ctx context.Context, leagueID string) ([]models.LeaderboardEntry, error) {
	members, err := s.members(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	owner := models.OwnerOf(members)
	entries := make([]models.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		entries = append(entries, models.LeaderboardEntry{
			Rank:     i + 1,
			UserID:   m.UserID,
			Points:   m.Points,
			JoinedAt: m.JoinedAt,
			IsOwner:  owner != nil && owner.UserID == m.UserID,
		})
	}

	return entries, nil
}

// Delete removes a league. Only the owner may delete it.
func (s *Service) Delete(ctx context.Context, userID, leagueID string) error {
	members, err := s.members(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := requireOwner(members, userID); err != nil {
		return err
	}

	if err := s.leagues.Delete(ctx, leagueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("league", leagueID)
		}
		return fmt.Errorf("deleting league: %w", err)
	}

	log.Info().Str("league_id", leagueID).Str("user_id", userID).Msg("League deleted")
	return nil
}

// RemoveMember removes another member from the league. Only the owner may
// remove members and the owner cannot remove themselves.
func (s *Service) RemoveMember(ctx context.Context, userID, leagueID, memberID string) error {
	members, err := s.members(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := requireOwner(members, userID); err != nil {
		return err
	}
	if memberID == userID {
		return apperror.ValidationFailed("userId", "the owner cannot remove themselves")
	}

	removed, err := s.memberships.Remove(ctx, memberID, leagueID)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	if !removed {
		return apperror.NotFound("member", memberID)
	}

	log.Info().
		Str("league_id", leagueID).
		Str("user_id", userID).
		Str("member_id", memberID).
		Msg("Member removed")
	return nil
}

func (s *Service) members(ctx context.Context, leagueID string) ([]*models.Membership, error) {
	if _, err := s.leagues.GetByID(ctx, leagueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("league", leagueID)
		}
		return nil, fmt.Errorf("loading league: %w", err)
	}

	members, err := s.memberships.ListByLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("loading members: %w", err)
	}
	return members, nil
}

func requireOwner(members []*models.Membership, userID string) error {
	owner := models.OwnerOf(members)
	if owner == nil || owner.UserID != userID {
		return apperror.Forbidden("only the league owner can do that")
	}
	return nil
}

// GenerateInviteCode returns a random upper-case alphanumeric code
func GenerateInviteCode() (string, error) {
	buf := make([]byte, InviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf), nil
}
