// Package version exposes build metadata injected through ldflags and the
// cobra `version` subcommand shared by every binary.
package version
