// Package buildinfo resolves the version, commit, and build date shown
// by the version and help surfaces. Linker-set values win; Go module
// build settings fill the gaps.
package buildinfo

import (
	"runtime/debug"
	"strings"
	"time"
)

// devVersion is what uninstrumented source builds report. Releases
// override Version through -ldflags.
const devVersion = "0.1.0"

// Overridable at link time:
//
//	-ldflags "-X .../internal/buildinfo.Version=v1.0.0"
var (
	Version    = devVersion
	CommitHash = ""
	BuildDate  = ""
)

// Info is the resolved metadata triple. No field is ever empty; a value
// that cannot be determined reads "unknown".
type Info struct {
	Version    string
	CommitHash string
	BuildDate  string
}

// Current resolves build metadata. Precedence per field: the linker
// override, then the module build settings embedded by the Go
// toolchain, then "unknown".
func Current() Info {
	info := Info{
		Version:    strings.TrimSpace(Version),
		CommitHash: strings.TrimSpace(CommitHash),
		BuildDate:  strings.TrimSpace(BuildDate),
	}

	rev, ts, dirty := vcsSettings()

	if info.Version == "" || info.Version == devVersion {
		if mv := moduleVersion(); mv != "" {
			info.Version = mv
		}
	}
	if info.CommitHash == "" && rev != "" {
		info.CommitHash = rev
		if dirty && !strings.HasSuffix(info.CommitHash, "-dirty") {
			info.CommitHash += "-dirty"
		}
	}
	if info.BuildDate == "" {
		info.BuildDate = ts
	}
	if parsed, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildDate = parsed.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	if info.Version == "" {
		info.Version = "unknown"
	}
	if info.CommitHash == "" {
		info.CommitHash = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

// moduleVersion returns the main module version when the binary was
// built from a tagged module, and "" for (devel) builds.
func moduleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return ""
	}
	return bi.Main.Version
}

// vcsSettings extracts the VCS revision, commit time, and dirty flag
// the toolchain embeds into binaries built inside a checkout.
func vcsSettings() (rev, ts string, dirty bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", "", false
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = strings.TrimSpace(s.Value)
		case "vcs.time":
			ts = strings.TrimSpace(s.Value)
		case "vcs.modified":
			dirty = strings.EqualFold(strings.TrimSpace(s.Value), "true")
		}
	}
	return rev, ts, dirty
}
