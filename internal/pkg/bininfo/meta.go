// Package bininfo holds version control metadata injected at build time via
// go's -ldflags. The variable names are part of the build scripts.
package bininfo

var (
	// Version is the SemVer version of the binary, with the git commit
	// appended after a plus sign when available.
	Version = "v0.0.0"

	// BuildTime is the time at which the binary was built.
	BuildTime = "1970-01-01T00:00:00Z"
)
