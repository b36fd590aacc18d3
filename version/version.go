// Package version exposes build metadata injected via linker flags at
// release time, plus a couple of formatting helpers callers use to report
// it (the CLI's version subcommand, startup log lines).
package version

var (
	// Version is set via -X github.com/go-proxychain/proxychain/version.Version=x.y.z.
	Version = "dev"
	// Commit is set via -X github.com/go-proxychain/proxychain/version.Commit=abc123.
	Commit = "unknown"
	// Date is set via -X github.com/go-proxychain/proxychain/version.Date=2024-01-01T00:00:00Z.
	Date = "unknown"
)

// Fields returns the three build values as a map, handy for structured
// logging (slog.Any("build", version.Fields())).
func Fields() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}

// Short returns just the semantic version, with no commit/date detail.
func Short() string {
	return Version
}

// String returns the full human-readable build string: version, commit,
// and build date together.
func String() string {
	return Version + " (" + Commit + ", built " + Date + ")"
}
