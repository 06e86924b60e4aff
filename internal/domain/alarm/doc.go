// Package alarm turns transmitter telemetry into ranked alarm records.
//
// Evaluate is a pure function of one snapshot and its thresholds. Everything
// that needs memory across snapshots (silence duration, operator
// acknowledgement) lives outside it: see SilenceTracker and Merge.
package alarm
