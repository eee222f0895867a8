// Package version reports the build of the linecounter binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// These variables are set during build time
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Name of the program as printed in version banners
const Name = "linecounter"

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	SemVer    string `json:"semver" yaml:"semver"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GitCommit string `json:"git_commit" yaml:"git_commit"`
	Modified  bool   `json:"modified" yaml:"modified"`

	GoVersion string `json:"go_version" yaml:"go_version"`
	Compiler  string `json:"compiler" yaml:"compiler"`
	Platform  string `json:"platform" yaml:"platform"`
	NumCPU    int    `json:"num_cpu" yaml:"num_cpu"`

	Deps []Module `json:"deps,omitempty" yaml:"deps,omitempty"`
}

// Module represents a Go module dependency
type Module struct {
	Path    string `json:"path" yaml:"path"`
	Version string `json:"version" yaml:"version"`
}

// GetBuildInfo returns the linker supplied version merged with what the Go
// toolchain embedded in the binary. Linker values win.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		SemVer:    semVer(Version),
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Compiler:  runtime.Compiler,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(&info, bi)
	}
	return info
}

func applyBuildInfo(info *BuildInfo, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
		info.SemVer = semVer(bi.Main.Version)
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	for _, dep := range bi.Deps {
		m := Module{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			m.Version = dep.Replace.Version
		}
		info.Deps = append(info.Deps, m)
	}
}

// semVer strips any pre-release or build suffix
func semVer(v string) string {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	return v
}

// Short returns the one line version banner
func Short() string {
	info := GetBuildInfo()
	commit := info.GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s %s (%s)", Name, info.Version, commit)
}

// FullVersion returns a formatted string with complete version information
func FullVersion() string {
	return formatFull(GetBuildInfo())
}

func formatFull(info BuildInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Name, info.Version)
	b.WriteString("========================================\n\n")

	b.WriteString("Version Information:\n")
	fmt.Fprintf(&b, "  Version:      %s\n", info.Version)
	fmt.Fprintf(&b, "  Semantic Ver: %s\n", info.SemVer)
	fmt.Fprintf(&b, "  Build Date:   %s\n", info.BuildDate)
	fmt.Fprintf(&b, "  Commit:       %s\n", info.GitCommit)
	if info.Modified {
		b.WriteString("  Working tree: modified\n")
	}
	b.WriteString("\n")

	b.WriteString("Go Build Information:\n")
	fmt.Fprintf(&b, "  Go Version:   %s\n", info.GoVersion)
	fmt.Fprintf(&b, "  Compiler:     %s\n", info.Compiler)
	fmt.Fprintf(&b, "  Platform:     %s\n", info.Platform)
	fmt.Fprintf(&b, "  CPUs:         %d\n", info.NumCPU)

	if len(info.Deps) > 0 {
		b.WriteString("\nDependencies:\n")
		for _, dep := range info.Deps {
			fmt.Fprintf(&b, "  - %s@%s\n", dep.Path, dep.Version)
		}
	}

	return b.String()
}
