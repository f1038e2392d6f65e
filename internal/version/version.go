package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/taskstream"

// buildVersion is set via -ldflags "-X pkt.systems/taskstream/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Version   string
	Module    string
	Revision  string
	Modified  bool
	GoVersion string
}

// String renders the info on one line for the version command.
func (i Info) String() string {
	out := fmt.Sprintf("%s %s", i.Module, i.Version)
	if i.Revision != "" {
		out += " (" + i.Revision
		if i.Modified {
			out += ", modified"
		}
		out += ")"
	}
	return out + " " + i.GoVersion
}

// Get collects version information from the linker flag and build info.
func Get() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info)
}

// Current returns the best available version string.
func Current() string {
	return Get().Version
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	out := Info{Module: defaultModule, GoVersion: runtime.Version()}
	vcs := readVCS(info)
	out.Revision = vcs.shortRevision()
	out.Modified = vcs.modified
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		if v := strings.TrimSpace(info.GoVersion); v != "" {
			out.GoVersion = v
		}
	}
	switch {
	case strings.TrimSpace(buildVersion) != "":
		out.Version = strings.TrimSpace(buildVersion)
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = strings.TrimSuffix(info.Main.Version, "+dirty")
	default:
		out.Version = vcs.pseudoVersion()
	}
	return out
}

type vcsInfo struct {
	revision string
	time     string
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	if info == nil {
		return out
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			out.time = setting.Value
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

func (v vcsInfo) shortRevision() string {
	if len(v.revision) > 12 {
		return v.revision[:12]
	}
	return v.revision
}

func (v vcsInfo) pseudoVersion() string {
	if v.revision == "" || v.time == "" {
		return "v0.0.0-unknown"
	}
	parsed, err := time.Parse(time.RFC3339, v.time)
	if err != nil {
		return "v0.0.0-unknown"
	}
	return "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + v.shortRevision()
}
