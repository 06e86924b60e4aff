// Package monitor classifies transmitter telemetry into ranked alarms.
//
// Telemetry samples arrive on the push broker. On every refresh the latest
// sample of each transmitter is evaluated against its thresholds, merged
// with operator acknowledgements, sorted by priority and published as a
// report. Threshold overrides are reloaded when their YAML file changes.
package monitor
