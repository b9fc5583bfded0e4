package version

import "runtime/debug"

// Build information, set at build time via -ldflags.
var (
	// Version is the semantic version of the proxy
	Version = "v0.1.0"

	// Commit is the git commit hash
	Commit = "unknown"

	// BuiltAt is the build timestamp
	BuiltAt = "unknown"
)

// Info returns the version string.
func Info() string {
	return Version
}

// FullInfo returns complete build information, falling back to the module
// build info for the commit when ldflags were not set.
func FullInfo() string {
	commit := Commit
	if commit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					commit = s.Value
				}
			}
		}
	}
	return "version=" + Version + " commit=" + commit + " built_at=" + BuiltAt
}
