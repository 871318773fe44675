package outcome

import (
	"database/sql"
	"testing"

	"wcpickem/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
)

func flag(b bool) *bool { return &b }

func TestResolve_CoarseOnly(t *testing.T) {
	coarse := &models.FeedMatch{
		ID:           "m1",
		Teams:        []string{"India", "Pakistan"},
		Status:       "Match starts at Feb 15, 13:30 GMT",
		MatchStarted: flag(false),
		MatchEnded:   flag(false),
	}

	out := Resolve(coarse, nil)
	assert.False(t, out.Started)
	assert.False(t, out.Ended)
	assert.False(t, out.HasWinner())
	assert.Equal(t, coarse.Status, out.Status, "unfinished status is never annotated")
}

func TestResolve_DetailFlagsWin(t *testing.T) {
	coarse := &models.FeedMatch{
		Status:       "India opt to bowl",
		MatchStarted: flag(false),
		MatchEnded:   flag(false),
	}
	detail := &models.FeedMatch{
		Status:       "Pakistan 87/3 (11.2 ov)",
		MatchStarted: flag(true),
		MatchEnded:   flag(false),
	}

	out := Resolve(coarse, detail)
	assert.True(t, out.Started)
	assert.False(t, out.Ended)
	assert.Equal(t, "Pakistan 87/3 (11.2 ov)", out.Status)
}

func TestResolve_DetailWithoutFlagsFallsBackToCoarse(t *testing.T) {
	coarse := &models.FeedMatch{MatchStarted: flag(true), MatchEnded: flag(true), Status: "No result"}
	detail := &models.FeedMatch{Status: ""}

	out := Resolve(coarse, detail)
	assert.True(t, out.Started)
	assert.True(t, out.Ended)
	assert.Equal(t, "No result", out.Status, "empty detail status falls back to coarse")
	assert.False(t, out.HasWinner())
}

func TestResolve_WinPhraseForcesEnded(t *testing.T) {
	coarse := &models.FeedMatch{
		Status:       "England won by 51 runs",
		MatchStarted: flag(true),
		MatchEnded:   flag(false),
	}

	out := Resolve(coarse, nil)
	assert.True(t, out.Started)
	assert.True(t, out.Ended, "stale ended flag overridden by result text")
	assert.Equal(t, "England", out.Winner)
	assert.Equal(t, "England won by 51 runs (Thrashing)", out.Status)
}

func TestResolve_WinPhraseAnyCase(t *testing.T) {
	coarse := &models.FeedMatch{
		Status:       "India Won By 5 runs",
		MatchStarted: flag(false),
		MatchEnded:   flag(false),
	}

	out := Resolve(coarse, nil)
	assert.True(t, out.Started)
	assert.True(t, out.Ended)
	assert.Equal(t, "India", out.Winner)
	assert.Equal(t, "India Won By 5 runs (Narrow)", out.Status)
}

func TestResolve_WinnerPrecedence(t *testing.T) {
	t.Run("detail winner field first", func(t *testing.T) {
		coarse := &models.FeedMatch{Status: "Australia won by 4 wkts", Winner: "Australia"}
		detail := &models.FeedMatch{Status: "Australia won by 4 wkts", MatchWinner: "Australia Men", MatchEnded: flag(true)}

		out := Resolve(coarse, detail)
		assert.Equal(t, "Australia Men", out.Winner)
	})

	t.Run("status text before coarse winner", func(t *testing.T) {
		coarse := &models.FeedMatch{Status: "Sri Lanka won by 3 runs", Winner: "Stale Name"}

		out := Resolve(coarse, nil)
		assert.Equal(t, "Sri Lanka", out.Winner)
	})

	t.Run("detail status used for parsing", func(t *testing.T) {
		coarse := &models.FeedMatch{Status: "Netherlands need 12 runs", MatchEnded: flag(false)}
		detail := &models.FeedMatch{Status: "Netherlands won by 2 wickets"}

		out := Resolve(coarse, detail)
		assert.Equal(t, "Netherlands", out.Winner)
		assert.True(t, out.Ended)
		assert.Equal(t, "Netherlands won by 2 wickets (Narrow)", out.Status)
	})

	t.Run("coarse winner as last resort", func(t *testing.T) {
		coarse := &models.FeedMatch{Status: "Match tied (India won the Super Over)", Winner: "India", MatchEnded: flag(true)}

		out := Resolve(coarse, nil)
		assert.Equal(t, "India", out.Winner)
		assert.Equal(t, "Match tied (India won the Super Over) (Narrow)", out.Status)
	})

	t.Run("unknown winner stays empty", func(t *testing.T) {
		coarse := &models.FeedMatch{Status: "Match abandoned due to rain", MatchEnded: flag(true)}

		out := Resolve(coarse, nil)
		assert.False(t, out.HasWinner())
		assert.Equal(t, "Match abandoned due to rain", out.Status)
	})
}

func TestResolve_ExistingTokenNotDuplicated(t *testing.T) {
	coarse := &models.FeedMatch{Status: "India won by 3 wickets (Comfortable)", MatchEnded: flag(true)}

	out := Resolve(coarse, nil)
	assert.Equal(t, "India won by 3 wickets (Comfortable)", out.Status)
}

func TestWinnerFromStatus(t *testing.T) {
	assert.Equal(t, "West Indies", WinnerFromStatus("West Indies won by 10 wkts"))
	assert.Equal(t, "Sri Lanka", WinnerFromStatus("Sri Lanka WON BY 2 runs"))
	assert.Equal(t, "", WinnerFromStatus("won by 10 wkts"))
	assert.Equal(t, "", WinnerFromStatus("Match drawn"))
	assert.Equal(t, "", WinnerFromStatus(""))
}

func TestEffectiveWinner(t *testing.T) {
	m := &models.Match{Status: "Ireland won by 5 runs (Narrow)"}
	assert.Equal(t, "Ireland", EffectiveWinner(m))

	m.Winner = sql.NullString{String: "Ireland Men", Valid: true}
	assert.Equal(t, "Ireland Men", EffectiveWinner(m))
}
