package version

// Set at build time via -ldflags "-X github.com/stupside/thumbmark/internal/version.Version=...".
var (
	Version   = "1.0.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)
