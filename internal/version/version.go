// Package version holds the qms build version.
package version

// Overridden at link time, e.g.
// go build -ldflags "-X qms/internal/version.Version=0.2.0 -X qms/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const shortCommitLen = 7

// Info returns the version, with the short commit when one is known.
func Info() string {
	if Commit == "unknown" || len(Commit) <= shortCommitLen {
		return Version
	}
	return Version + " (" + Commit[:shortCommitLen] + ")"
}

// Full returns the banner printed by `qms version`.
func Full() string {
	return "qms version " + Version + "\nCommit: " + Commit + "\nBuilt: " + BuildDate
}
