package version

import "fmt"

var (
	// Version is the semantic version of the build, set via ldflags.
	Version = "0.3.0"
	// Commit is the short git SHA embedded at build time.
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// ClientID builds the identifier a binary presents to the push broker,
// e.g. "studio-console-0.3.0-producer-A".
func ClientID(binary string, parts ...string) string {
	id := binary + "-" + Version
	for _, p := range parts {
		if p != "" {
			id += "-" + p
		}
	}

	return id
}
