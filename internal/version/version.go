// Package version carries build metadata, set at link time:
//
//	go build -ldflags "-X github.com/thrane20/dillinger/internal/version.Version=v0.3.0 ..."
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns "<version> (<commit>, <date>)".
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
