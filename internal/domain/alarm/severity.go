package alarm

import "fmt"

// Severity ranks alarms; lower values are more severe.
type Severity uint8

const (
	SeverityCritical Severity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
	SeverityInfo
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo} //nolint:gochecknoglobals,lll // Read-only enum table.

var severityNames = [...]string{
	SeverityCritical: "critical",
	SeverityHigh:     "high",
	SeverityMedium:   "medium",
	SeverityLow:      "low",
	SeverityInfo:     "info",
}

// Rank returns the sort position of s; 0 is the most severe.
func (s Severity) Rank() int {
	return int(s)
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return s.Rank() < other.Rank()
}

// String returns the wire name.
func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}

	return fmt.Sprintf("severity(%d)", uint8(s))
}

// ParseSeverity converts a wire name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	for i, name := range severityNames {
		if name == s {
			return Severity(i), nil
		}
	}

	return SeverityInfo, fmt.Errorf("unknown severity %q", s)
}

// Category groups alarms by subsystem.
type Category uint8

const (
	CategoryPower Category = iota
	CategoryAudio
	CategoryThermal
	CategoryConnection
	CategoryHardware
	CategorySystem
)

var categoryNames = [...]string{
	CategoryPower:      "power",
	CategoryAudio:      "audio",
	CategoryThermal:    "thermal",
	CategoryConnection: "connection",
	CategoryHardware:   "hardware",
	CategorySystem:     "system",
}

// String returns the wire name.
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}

	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory converts a wire name to a Category.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}

	return CategorySystem, fmt.Errorf("unknown category %q", s)
}
