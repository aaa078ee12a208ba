package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// Name of the application
	AppName = "nanogit"

	// Version of the application, overridable via ldflags
	Version = "0.1.0-dev"

	// Git commit hash of the build
	Revision = "HEAD"
)

// Short returns a concise version string - `0.1.0 (5e23a4)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed returns the version plus toolchain and platform info.
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	// prefer the module version for release builds
	if Version == "0.1.0-dev" {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	// prefer the vcs revision for local builds
	if Revision == "HEAD" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				Revision = s.Value
				break
			}
		}
	}
}
