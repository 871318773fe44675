// Package storetest provides in-memory implementations of the repository
// types for unit tests. They follow the same merge and guard rules as the
// Postgres queries in package repository.
package storetest

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"wcpickem/ingestion/internal/models"
	"wcpickem/ingestion/internal/repository"
)

type predKey struct{ user, match string }

type memberKey struct{ user, league string }

// Store is a thread-safe in-memory database
type Store struct {
	mu          sync.Mutex
	matches     map[string]*models.Match
	predictions map[predKey]*models.Prediction
	memberships map[memberKey]*models.Membership
	leagues     map[string]*models.League
	clock       time.Time

	Matches     *Matches
	Predictions *Predictions
	Memberships *Memberships
	Leagues     *Leagues
}

// New creates an empty store
func New() *Store {
	s := &Store{
		matches:     make(map[string]*models.Match),
		predictions: make(map[predKey]*models.Prediction),
		memberships: make(map[memberKey]*models.Membership),
		leagues:     make(map[string]*models.League),
		clock:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	s.Matches = &Matches{s: s}
	s.Predictions = &Predictions{s: s}
	s.Memberships = &Memberships{s: s}
	s.Leagues = &Leagues{s: s}
	return s
}

// tick returns a strictly increasing timestamp so join order is stable
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// Matches mirrors repository.MatchRepository
type Matches struct {
	s *Store

	// FailUpsert makes Upsert fail for the listed match ids
	FailUpsert map[string]error
	// Err makes every read fail
	Err error
}

// Put stores a match as-is, bypassing the upsert rules
func (m *Matches) Put(match *models.Match) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := *match
	m.s.matches[match.ID] = &c
}

func (m *Matches) Upsert(_ context.Context, match *models.Match) error {
	if err := m.FailUpsert[match.ID]; err != nil {
		return err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	existing, ok := m.s.matches[match.ID]
	if !ok {
		c := *match
		c.ScoredAt = sql.NullTime{}
		c.CreatedAt = m.s.tick()
		c.UpdatedAt = c.CreatedAt
		m.s.matches[match.ID] = &c
		return nil
	}
	if existing.Ended && existing.Winner.Valid {
		return nil
	}

	next := *match
	if !next.Winner.Valid {
		next.Winner = existing.Winner
	}
	if len(next.Score) == 0 {
		next.Score = existing.Score
	}
	if next.ScheduledAt.IsZero() {
		next.ScheduledAt = existing.ScheduledAt
	}
	next.ScoredAt = existing.ScoredAt
	if existing.Status != next.Status || existing.Winner != next.Winner {
		next.ScoredAt = sql.NullTime{}
	}
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = m.s.tick()
	m.s.matches[match.ID] = &next
	return nil
}

func (m *Matches) GetByID(_ context.Context, id string) (*models.Match, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	match, ok := m.s.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, repository.ErrNotFound)
	}
	c := *match
	return &c, nil
}

func (m *Matches) ListByIDs(_ context.Context, ids []string) ([]*models.Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.filter(func(x *models.Match) bool { return want[x.ID] }), nil
}

func (m *Matches) ListAll(_ context.Context) ([]*models.Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.filter(func(*models.Match) bool { return true }), nil
}

func (m *Matches) ListEnded(_ context.Context) ([]*models.Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.filter(func(x *models.Match) bool { return x.Ended }), nil
}

func (m *Matches) ListUnscoredEnded(_ context.Context) ([]*models.Match, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.filter(func(x *models.Match) bool { return x.Ended && !x.ScoredAt.Valid }), nil
}

func (m *Matches) ResolvedIDs(_ context.Context) (map[string]struct{}, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	ids := make(map[string]struct{})
	for _, x := range m.filter(func(x *models.Match) bool { return x.Ended && x.Winner.Valid }) {
		ids[x.ID] = struct{}{}
	}
	return ids, nil
}

func (m *Matches) SettledIDs(_ context.Context) (map[string]struct{}, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	ids := make(map[string]struct{})
	for _, x := range m.filter(func(x *models.Match) bool { return x.Ended && !x.Winner.Valid && x.ScoredAt.Valid }) {
		ids[x.ID] = struct{}{}
	}
	return ids, nil
}

func (m *Matches) MarkScored(_ context.Context, ids []string, at time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if x, ok := m.s.matches[id]; ok && !x.ScoredAt.Valid {
			x.ScoredAt = sql.NullTime{Time: at, Valid: true}
			n++
		}
	}
	return n, nil
}

func (m *Matches) UpdateOutcome(_ context.Context, id, status string, winner sql.NullString) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	x, ok := m.s.matches[id]
	if !ok || (x.Status == status && x.Winner == winner) {
		return false, nil
	}
	x.Status = status
	x.Winner = winner
	x.ScoredAt = sql.NullTime{}
	return true, nil
}

func (m *Matches) HasMatchInWindow(_ context.Context, now time.Time, window time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	from, to := now.Add(-window), now.Add(window)
	found := m.filter(func(x *models.Match) bool {
		if x.Ended {
			return false
		}
		return x.Started || (!x.ScheduledAt.Before(from) && !x.ScheduledAt.After(to))
	})
	return len(found) > 0, nil
}

func (m *Matches) filter(keep func(*models.Match) bool) []*models.Match {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Match
	for _, x := range m.s.matches {
		if keep(x) {
			c := *x
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Predictions mirrors repository.PredictionRepository
type Predictions struct {
	s *Store

	// FailScore makes UpdateScore fail when it returns an error
	FailScore func(*models.Prediction) error
	// Err makes every read fail
	Err error
}

func (p *Predictions) Upsert(_ context.Context, pred *models.Prediction) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	k := predKey{pred.UserID, pred.MatchID}
	now := p.s.tick()
	c := models.Prediction{
		UserID:          pred.UserID,
		MatchID:         pred.MatchID,
		PredictedWinner: pred.PredictedWinner,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing, ok := p.s.predictions[k]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	p.s.predictions[k] = &c
	pred.Points, pred.Result, pred.ScoredAt = c.Points, c.Result, c.ScoredAt
	pred.CreatedAt, pred.UpdatedAt = c.CreatedAt, c.UpdatedAt
	return nil
}

func (p *Predictions) Get(_ context.Context, userID, matchID string) (*models.Prediction, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	x, ok := p.s.predictions[predKey{userID, matchID}]
	if !ok {
		return nil, fmt.Errorf("prediction %s/%s: %w", userID, matchID, repository.ErrNotFound)
	}
	c := *x
	return &c, nil
}

func (p *Predictions) ListByMatchIDs(_ context.Context, matchIDs []string) ([]*models.Prediction, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	want := make(map[string]bool, len(matchIDs))
	for _, id := range matchIDs {
		want[id] = true
	}
	return p.filter(func(x *models.Prediction) bool { return want[x.MatchID] }), nil
}

func (p *Predictions) ListUnscoredOnEnded(_ context.Context, userID string) ([]*models.Prediction, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	p.s.mu.Lock()
	ended := make(map[string]bool)
	for id, m := range p.s.matches {
		ended[id] = m.Ended
	}
	p.s.mu.Unlock()

	return p.filter(func(x *models.Prediction) bool {
		return ended[x.MatchID] && !x.ScoredAt.Valid && (userID == "" || x.UserID == userID)
	}), nil
}

func (p *Predictions) UpdateScore(_ context.Context, pred *models.Prediction) error {
	if p.FailScore != nil {
		if err := p.FailScore(pred); err != nil {
			return err
		}
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	x, ok := p.s.predictions[predKey{pred.UserID, pred.MatchID}]
	if !ok {
		return fmt.Errorf("prediction %s/%s: %w", pred.UserID, pred.MatchID, repository.ErrNotFound)
	}
	x.Points, x.Result, x.ScoredAt = pred.Points, pred.Result, pred.ScoredAt
	return nil
}

func (p *Predictions) ClearScores(_ context.Context) (int64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var n int64
	for _, x := range p.s.predictions {
		if x.ScoredAt.Valid {
			x.Points, x.Result, x.ScoredAt = sql.NullInt32{}, sql.NullString{}, sql.NullTime{}
			n++
		}
	}
	return n, nil
}

func (p *Predictions) filter(keep func(*models.Prediction) bool) []*models.Prediction {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []*models.Prediction
	for _, x := range p.s.predictions {
		if keep(x) {
			c := *x
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchID != out[j].MatchID {
			return out[i].MatchID < out[j].MatchID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Memberships mirrors repository.MembershipRepository
type Memberships struct {
	s *Store

	// Err makes RecomputePoints and RecomputePointsForUser fail
	Err error
}

func (m *Memberships) Add(_ context.Context, ms *models.Membership) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.leagues[ms.LeagueID]; !ok {
		return false, fmt.Errorf("league %s: %w", ms.LeagueID, repository.ErrNotFound)
	}
	k := memberKey{ms.UserID, ms.LeagueID}
	if _, ok := m.s.memberships[k]; ok {
		return false, nil
	}
	ms.Points = m.s.userPoints(ms.UserID)
	ms.JoinedAt = m.s.tick()
	c := *ms
	m.s.memberships[k] = &c
	return true, nil
}

func (m *Memberships) Remove(_ context.Context, userID, leagueID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	k := memberKey{userID, leagueID}
	if _, ok := m.s.memberships[k]; !ok {
		return false, nil
	}
	delete(m.s.memberships, k)
	return true, nil
}

func (m *Memberships) ListByLeague(_ context.Context, leagueID string) ([]*models.Membership, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Membership
	for _, x := range m.s.memberships {
		if x.LeagueID == leagueID {
			c := *x
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *Memberships) RecomputePoints(_ context.Context) (int64, error) {
	return m.recompute("")
}

func (m *Memberships) RecomputePointsForUser(_ context.Context, userID string) (int64, error) {
	return m.recompute(userID)
}

func (m *Memberships) recompute(userID string) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, x := range m.s.memberships {
		if userID != "" && x.UserID != userID {
			continue
		}
		x.Points = m.s.userPoints(x.UserID)
		n++
	}
	return n, nil
}

// Get returns a membership or nil
func (m *Memberships) Get(userID, leagueID string) *models.Membership {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	x, ok := m.s.memberships[memberKey{userID, leagueID}]
	if !ok {
		return nil
	}
	c := *x
	return &c
}

// userPoints must be called with mu held
func (s *Store) userPoints(userID string) int {
	total := 0
	for _, p := range s.predictions {
		if p.UserID == userID && p.Points.Valid {
			total += int(p.Points.Int32)
		}
	}
	return total
}

// Leagues mirrors repository.LeagueRepository
type Leagues struct {
	s *Store
}

func (l *Leagues) Create(_ context.Context, league *models.League) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.leagues[league.ID]; ok {
		return fmt.Errorf("league %s: %w", league.ID, repository.ErrDuplicate)
	}
	for _, x := range l.s.leagues {
		if x.InviteCode == league.InviteCode {
			return fmt.Errorf("league %s: %w", league.ID, repository.ErrDuplicate)
		}
	}
	league.CreatedAt = l.s.tick()
	c := *league
	l.s.leagues[league.ID] = &c
	return nil
}

func (l *Leagues) GetByID(_ context.Context, id string) (*models.League, error) {
	return l.find(id, func(x *models.League) bool { return x.ID == id })
}

func (l *Leagues) GetByInviteCode(_ context.Context, code string) (*models.League, error) {
	return l.find(code, func(x *models.League) bool { return x.InviteCode == code })
}

func (l *Leagues) Delete(_ context.Context, id string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.leagues[id]; !ok {
		return fmt.Errorf("league %s: %w", id, repository.ErrNotFound)
	}
	delete(l.s.leagues, id)
	for k := range l.s.memberships {
		if k.league == id {
			delete(l.s.memberships, k)
		}
	}
	return nil
}

func (l *Leagues) find(key string, match func(*models.League) bool) (*models.League, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for _, x := range l.s.leagues {
		if match(x) {
			c := *x
			return &c, nil
		}
	}
	return nil, fmt.Errorf("league %s: %w", key, repository.ErrNotFound)
}
