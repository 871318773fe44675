// Package outcome derives the authoritative result of a match from the
// feed's coarse list entry and, when available, its detail record.
//
// The feed is eventually consistent: flags lag behind the status text and
// the winner field is often empty for several minutes after a result. The
// resolver prefers the most detailed source for every field and falls back to
// parsing the status text.
package outcome

import (
	"regexp"
	"strings"

	"wcpickem/ingestion/internal/margin"
	"wcpickem/ingestion/internal/models"
)

// winPattern captures the winning side of a result line, any letter case
var winPattern = regexp.MustCompile(`(?i)^\s*(.*?\S)\s+won\s+by\s`)

// Outcome is the resolved state of a match
type Outcome struct {
	Winner  string // empty when unknown
	Status  string
	Started bool
	Ended   bool
}

// HasWinner returns true if a winner could be derived
func (o Outcome) HasWinner() bool {
	return o.Winner != ""
}

// Resolve merges a coarse feed record with an optional detail record.
// coarse must not be nil; detail may be.
func Resolve(coarse, detail *models.FeedMatch) Outcome {
	var out Outcome

	out.Started = pickFlag(coarse.MatchStarted, detailFlag(detail, true))
	out.Ended = pickFlag(coarse.MatchEnded, detailFlag(detail, false))

	out.Status = coarse.Status
	if detail != nil && strings.TrimSpace(detail.Status) != "" {
		out.Status = detail.Status
	}

	// Stale flags: a result line means the match is over
	if winPattern.MatchString(out.Status) {
		out.Started = true
		out.Ended = true
	}

	switch {
	case detail != nil && detail.WinnerName() != "":
		out.Winner = detail.WinnerName()
	case WinnerFromStatus(out.Status) != "":
		out.Winner = WinnerFromStatus(out.Status)
	default:
		out.Winner = coarse.WinnerName()
	}

	if out.Ended {
		out.Status = margin.Annotate(out.Status)
	}

	return out
}

func detailFlag(detail *models.FeedMatch, started bool) *bool {
	if detail == nil {
		return nil
	}
	if started {
		return detail.MatchStarted
	}
	return detail.MatchEnded
}

// pickFlag prefers the detail record's explicit flag over the coarse one
func pickFlag(coarse, detail *bool) bool {
	if detail != nil {
		return *detail
	}
	return coarse != nil && *coarse
}

// WinnerFromStatus extracts the winning side from a result line such as
// "India won by 7 wkts". It returns an empty string when the text carries no
// result.
func WinnerFromStatus(status string) string {
	m := winPattern.FindStringSubmatch(status)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// EffectiveWinner returns the stored winner of m, falling back to the
// status text when the winner column was never populated.
func EffectiveWinner(m *models.Match) string {
	if w := m.WinnerOrEmpty(); w != "" {
		return w
	}
	return WinnerFromStatus(m.Status)
}
