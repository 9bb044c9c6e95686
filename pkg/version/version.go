package version

import (
	"runtime/debug"
)

type Info struct {
	Commit string `json:"commit"`
	Time   string `json:"time"`
	Dirty  bool   `json:"dirty"`
}

func (i Info) String() string {
	if i.Commit == "" {
		return "devel"
	}
	s := i.Commit
	if len(s) > 12 {
		s = s[:12]
	}
	if i.Dirty {
		s += "-dirty"
	}
	return s
}

// Version is read from the vcs stamps go build embeds. A self-updated checkout reports the new
// commit after the daemon is restarted.
var Version = func() Info {
	v := Info{}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				v.Commit = setting.Value
			case "vcs.time":
				v.Time = setting.Value
			case "vcs.modified":
				v.Dirty = setting.Value == "true"
			}
		}
	}
	return v
}()
