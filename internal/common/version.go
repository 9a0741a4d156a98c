package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Build identity, injected via -ldflags "-X ..." at release build time
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

var versionOnce sync.Once

// GetVersion returns the effective version. A binary built without ldflags
// falls back to a .version file beside the executable, so dev builds still
// report something meaningful.
func GetVersion() string {
	versionOnce.Do(func() {
		if Version != "dev" {
			return
		}
		exePath, err := os.Executable()
		if err != nil {
			return
		}
		data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
		if err != nil {
			return
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			Version = v
		}
	})
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns the version with build and commit detail
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", GetVersion(), Build, GitCommit)
}
