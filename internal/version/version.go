// SPDX-License-Identifier: Apache-2.0

package version

// Set at build time with -ldflags "-X github.com/kusari-oss/triage/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the version line printed by both binaries
func String() string {
	return Version + " (commit " + Commit + ", built " + Date + ")"
}
