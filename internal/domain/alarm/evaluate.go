package alarm

import (
	"fmt"
	"math"
)

// Rule group identifiers, used to build stable alarm ids.
const (
	GroupConnection     = "connection"
	GroupForwardPower   = "forward_power"
	GroupReflectedPower = "reflected_power"
	GroupTemperature    = "temperature"
	GroupAudioLow       = "audio_low"
	GroupAudioHigh      = "audio_high"
	GroupHardware       = "hardware"
	GroupSilence        = "silence"
)

// ID builds the stable id of an alarm raised by group on a transmitter.
func ID(transmitterID, group string, qualifiers ...string) string {
	id := transmitterID + ":" + group
	for _, q := range qualifiers {
		id += ":" + q
	}

	return id
}

// tier is one row of a threshold group; the first matching tier wins.
type tier struct {
	severity  Severity
	threshold float64
	above     bool
	message   string
}

func (t tier) match(v float64) bool {
	if t.above {
		return v > t.threshold
	}

	return v < t.threshold
}

// Evaluate classifies one snapshot. Groups are independent and each raises at
// most one alarm, except audio, which raises one per channel when the channels
// do not agree. An offline transmitter yields only the connection alarm.
func Evaluate(s Snapshot, th Thresholds) []Alarm {
	if s.Status == StatusOffline {
		return []Alarm{{
			ID:            ID(s.TransmitterID, GroupConnection),
			TransmitterID: s.TransmitterID,
			Timestamp:     s.Timestamp,
			Severity:      SeverityCritical,
			Category:      CategoryConnection,
			Message:       "No connection to transmitter",
		}}
	}

	var alarms []Alarm

	emit := func(a *Alarm) {
		if a != nil {
			alarms = append(alarms, *a)
		}
	}

	emit(s.classify(GroupForwardPower, CategoryPower, s.ForwardPower, "W",
		tier{SeverityCritical, th.ForwardPowerCritical, false, "Critical low forward power"},
		tier{SeverityHigh, th.ForwardPowerLow, false, "Low forward power"},
		tier{SeverityHigh, th.ForwardPowerHigh, true, "High forward power"},
	))
	emit(s.classify(GroupReflectedPower, CategoryPower, s.ReflectedPower, "W",
		tier{SeverityCritical, th.ReflectedPowerCritical, true, "Critical reflected power"},
		tier{SeverityHigh, th.ReflectedPowerHigh, true, "High reflected power"},
		tier{SeverityMedium, th.ReflectedPowerWarning, true, "Elevated reflected power"},
	))
	emit(s.classify(GroupTemperature, CategoryThermal, s.Temperature, "°C",
		tier{SeverityCritical, th.TemperatureCritical, true, "Critical temperature"},
		tier{SeverityHigh, th.TemperatureHigh, true, "High temperature"},
		tier{SeverityMedium, th.TemperatureWarning, true, "Elevated temperature"},
	))

	alarms = append(alarms, s.audio(GroupAudioLow, th.AudioLevelLow, false, "Low audio level")...)
	alarms = append(alarms, s.audio(GroupAudioHigh, th.AudioLevelHigh, true, "High audio level")...)

	if len(alarms) == 0 && s.HardwareAlarm {
		alarms = append(alarms, Alarm{
			ID:            ID(s.TransmitterID, GroupHardware),
			TransmitterID: s.TransmitterID,
			Timestamp:     s.Timestamp,
			Severity:      SeverityHigh,
			Category:      CategorySystem,
			Message:       "Transmitter reports a hardware alarm",
		})
	}

	return alarms
}

// classify returns the alarm of the first matching tier, or nil when the
// value is missing or within limits.
func (s Snapshot) classify(group string, category Category, value *float64, unit string, tiers ...tier) *Alarm {
	if value == nil || math.IsNaN(*value) {
		return nil
	}

	for _, t := range tiers {
		if !t.match(*value) {
			continue
		}

		return &Alarm{
			ID:            ID(s.TransmitterID, group),
			TransmitterID: s.TransmitterID,
			Timestamp:     s.Timestamp,
			Severity:      t.severity,
			Category:      category,
			Message:       fmt.Sprintf("%s: %.1f %s", t.message, *value, unit),
			Value:         Float(*value),
			Threshold:     Float(t.threshold),
		}
	}

	return nil
}

// audio checks both channels against one limit: a combined alarm when both
// are out of range, otherwise one alarm per offending channel.
func (s Snapshot) audio(group string, limit float64, above bool, message string) []Alarm {
	t := tier{severity: SeverityMedium, threshold: limit, above: above}

	out := func(v *float64) bool {
		return v != nil && !math.IsNaN(*v) && t.match(*v)
	}

	left, right := out(s.AudioLevelLeft), out(s.AudioLevelRight)

	build := func(qualifier, label string, value *float64) Alarm {
		a := Alarm{
			ID:            ID(s.TransmitterID, group, qualifier),
			TransmitterID: s.TransmitterID,
			Timestamp:     s.Timestamp,
			Severity:      SeverityMedium,
			Category:      CategoryAudio,
			Message:       fmt.Sprintf("%s on %s", message, label),
			Threshold:     Float(limit),
		}

		if value != nil {
			a.Value = Float(*value)
			a.Message = fmt.Sprintf("%s on %s: %.1f dB", message, label, *value)
		}

		return a
	}

	switch {
	case left && right:
		return []Alarm{build("both", "both channels", nil)}
	case left:
		return []Alarm{build("left", "left channel", s.AudioLevelLeft)}
	case right:
		return []Alarm{build("right", "right channel", s.AudioLevelRight)}
	default:
		return nil
	}
}

// vswrSentinel is returned when reflected power equals or exceeds forward power.
const vswrSentinel = 999.9

// VSWR derives the voltage standing wave ratio from forward and reflected power.
func VSWR(forward, reflected float64) float64 {
	if forward <= 0 || reflected < 0 {
		return 1.0
	}

	gamma := math.Sqrt(reflected / forward)
	v := (1 + gamma) / (1 - gamma)

	if math.IsInf(v, 0) || math.IsNaN(v) || v < 0 {
		return vswrSentinel
	}

	return v
}
