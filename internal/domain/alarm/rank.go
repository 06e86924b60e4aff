package alarm

import (
	"slices"
	"strings"
)

// SortByPriority returns a copy of alarms ordered by severity, newest first
// within a severity. Alarms with equal keys keep their input order.
func SortByPriority(alarms []Alarm) []Alarm {
	out := slices.Clone(alarms)

	slices.SortStableFunc(out, func(a, b Alarm) int {
		if a.Severity != b.Severity {
			return a.Severity.Rank() - b.Severity.Rank()
		}

		return b.Timestamp.Compare(a.Timestamp)
	})

	return out
}

// Filter selects alarms. Zero-valued criteria match everything; all set criteria must match.
type Filter struct {
	Severities    []Severity
	Categories    []Category
	TransmitterID string
	Acknowledged  *bool
	Resolved      *bool
	// Text is matched case-insensitively against Message and Notes.
	Text string
}

// Match reports whether a satisfies every criterion of f.
func (f Filter) Match(a Alarm) bool {
	if len(f.Severities) > 0 && !slices.Contains(f.Severities, a.Severity) {
		return false
	}

	if len(f.Categories) > 0 && !slices.Contains(f.Categories, a.Category) {
		return false
	}

	if f.TransmitterID != "" && f.TransmitterID != a.TransmitterID {
		return false
	}

	if f.Acknowledged != nil && *f.Acknowledged != a.Acknowledged {
		return false
	}

	if f.Resolved != nil && *f.Resolved != a.Resolved {
		return false
	}

	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(a.Message), needle) && !strings.Contains(strings.ToLower(a.Notes), needle) {
			return false
		}
	}

	return true
}

// FilterAlarms returns the alarms matching f, in input order.
func FilterAlarms(alarms []Alarm, f Filter) []Alarm {
	var out []Alarm

	for _, a := range alarms {
		if f.Match(a) {
			out = append(out, a)
		}
	}

	return out
}

// Summary counts alarms for dashboard badges.
type Summary struct {
	Counts map[Severity]int
	Total  int
	// Highest is meaningful only when Total > 0.
	Highest Severity
}

// Summarize counts alarms per severity and finds the most severe one.
func Summarize(alarms []Alarm) Summary {
	s := Summary{
		Counts:  make(map[Severity]int, len(Severities)),
		Highest: SeverityInfo,
	}

	for _, a := range alarms {
		s.Counts[a.Severity]++
		s.Total++

		if a.Severity.MoreSevere(s.Highest) {
			s.Highest = a.Severity
		}
	}

	return s
}
