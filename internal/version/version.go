// Package version reports the voxtalk build.
package version

import (
	"fmt"
	"os/exec"
	"runtime/debug"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "voxtalk v%s", i.Version)

	var details []string
	if i.Commit != "" {
		commit := i.Commit
		if i.Dirty {
			commit += "-dirty"
		}
		details = append(details, "commit "+commit)
	}
	if i.Date != "" {
		details = append(details, "built "+i.Date)
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
	}
	return b.String()
}

// Resolve returns the version string, with a git-derived suffix when run
// from a checkout whose HEAD is not a release tag.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// Details combines the release variables with the VCS stamp the Go toolchain
// embeds in the binary.
func Details() Info {
	info := Info{Version: Resolve(), Commit: Commit, Date: Date}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withBuildSettings(info, bi.Settings)
	}
	return info
}

func withBuildSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := gitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func gitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
