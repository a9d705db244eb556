// Package version carries build identification stamped in via -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/veritract/docpipe/internal/version.Version=v1.2.0 \
//	  -X github.com/veritract/docpipe/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "dev"
	Commit  = "unknown"
)

// String renders the build identity as "version (commit)" for startup logs.
func String() string {
	return Version + " (" + Commit + ")"
}
