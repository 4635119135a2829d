// Package version reports what build is running. Version, Commit and
// BuildTime are set with -ldflags "-X"; when they are not, the VCS stamp
// recorded by the Go toolchain is used.
package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

const Name = "unimec-display"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

var get = sync.OnceValue(func() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi.Settings)
	}
	return info
})

func Get() Info { return get() }

// applyBuildSettings fills fields still at their defaults from vcs.* settings.
func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// UserAgent identifies a component, e.g. the display client, to the server.
func UserAgent(component string) string {
	info := Get()
	return Name + "-" + component + "/" + info.Version + " (" + info.Commit + ")"
}
