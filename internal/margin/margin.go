// Package margin classifies a cricket result line into a victory-margin bucket.
//
// The classifier is pure: it only inspects the status text reported by the
// feed (e.g. "India won by 7 wkts") and never performs I/O.
package margin

import (
	"regexp"
	"strconv"
	"strings"
)

// Bucket is a discrete victory-margin classification
type Bucket string

const (
	Narrow      Bucket = "Narrow"
	Comfortable Bucket = "Comfortable"
	Easy        Bucket = "Easy"
	Thrashing   Bucket = "Thrashing"
)

// All lists the buckets in ascending order of decisiveness
var All = []Bucket{Narrow, Comfortable, Easy, Thrashing}

var (
	tokenPattern  = regexp.MustCompile(`(?i)\((Narrow|Comfortable|Easy|Thrashing)\)`)
	stripPattern  = regexp.MustCompile(`(?i)\s*\((Narrow|Comfortable|Easy|Thrashing)\)`)
	runsPattern   = regexp.MustCompile(`(?i)won by (\d+) runs?\b`)
	wicketPattern = regexp.MustCompile(`(?i)won by (\d+) (?:wickets?|wkts?)\b`)
)

// Thresholds are inclusive upper bounds for Narrow, Comfortable and Easy;
// anything above the last bound is a Thrashing.
var (
	runThresholds    = [3]int{9, 24, 39}
	wicketThresholds = [3]int{2, 5, 8}
)

// Classify maps a free-text result status to a margin bucket.
// The second return value is false when the text is ambiguous or incomplete.
//
// Priority:
//  1. an embedded "(Bucket)" token from a previous classification
//  2. any mention of a super over (always Narrow)
//  3. "won by N runs"
//  4. "won by N wickets" (more wickets in hand is a bigger margin)
func Classify(status string) (Bucket, bool) {
	if status == "" {
		return "", false
	}

	if m := tokenPattern.FindStringSubmatch(status); m != nil {
		return Parse(m[1])
	}

	if strings.Contains(strings.ToLower(status), "super over") {
		return Narrow, true
	}

	if m := runsPattern.FindStringSubmatch(status); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return bucketFor(n, runThresholds), true
		}
	}

	if m := wicketPattern.FindStringSubmatch(status); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return bucketFor(n, wicketThresholds), true
		}
	}

	return "", false
}

func bucketFor(n int, bounds [3]int) Bucket {
	switch {
	case n <= bounds[0]:
		return Narrow
	case n <= bounds[1]:
		return Comfortable
	case n <= bounds[2]:
		return Easy
	default:
		return Thrashing
	}
}

// Parse converts a user- or feed-supplied bucket name to its canonical form
func Parse(s string) (Bucket, bool) {
	s = strings.TrimSpace(s)
	for _, b := range All {
		if strings.EqualFold(s, string(b)) {
			return b, true
		}
	}
	return "", false
}

// HasToken reports whether the status already carries a "(Bucket)" token
func HasToken(status string) bool {
	return tokenPattern.MatchString(status)
}

// Annotate appends " (Bucket)" to status when it has no token yet and
// a bucket can be derived. Otherwise status is returned unchanged.
func Annotate(status string) string {
	if status == "" || HasToken(status) {
		return status
	}
	b, ok := Classify(status)
	if !ok {
		return status
	}
	return status + " (" + string(b) + ")"
}

// Strip removes any embedded "(Bucket)" token from status
func Strip(status string) string {
	return strings.TrimSpace(stripPattern.ReplaceAllString(status, ""))
}

// String implements fmt.Stringer
func (b Bucket) String() string {
	return string(b)
}
