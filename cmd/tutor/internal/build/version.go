// Package build holds version information injected via ldflags:
//
//	go build -ldflags "-X github.com/josancamon19/realtime-tutor/cmd/tutor/internal/build.Version=v1.0.0 \
//	  -X github.com/josancamon19/realtime-tutor/cmd/tutor/internal/build.Commit=$(git rev-parse --short HEAD)"
package build

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("tutor %s (%s) built %s %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
