package common

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Build metadata, overridable at link time:
//
//	go build -ldflags "-X .../internal/common.Version=1.2.0"
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the semantic version string.
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp.
func GetBuild() string {
	return Build
}

// GetGitCommit returns the short git commit hash.
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns the version with build metadata appended, for
// startup logging.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile fills in version metadata from a .version file sitting
// next to the binary. Release archives ship the file so a binary built
// without ldflags still reports its version; values set at link time win.
//
// The file is "key: value" lines, with # comments:
//
//	version: 1.2.0
//	build: 2026-02-11T08:00:00Z
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	loadVersionFile(filepath.Join(filepath.Dir(exe), ".version"))
}

func loadVersionFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch strings.TrimSpace(key) {
		case "version":
			if Version == "dev" {
				Version = strings.TrimSpace(value)
			}
		case "build":
			if Build == "unknown" {
				Build = strings.TrimSpace(value)
			}
		case "commit":
			if GitCommit == "unknown" {
				GitCommit = strings.TrimSpace(value)
			}
		}
	}
}
