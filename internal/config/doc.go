// Package config defines the settings shared by studio-server, studio-console
// and alarm-monitor, and helpers to load, validate and save them as YAML.
//
// Connection secrets may come from the environment (optionally a .env file)
// instead of the YAML file; see ApplyEnv.
package config
