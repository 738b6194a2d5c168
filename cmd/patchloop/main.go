// Command patchloop is a self-contained installer and auto-updater: it
// diffs a source file tree against an installed target, stages and
// atomically applies the difference, and self-replaces when its own
// executable changed.
package main

import (
	"fmt"
	"os"

	"github.com/patchloop/patchloop/cmd/patchloop/cmd"
	"github.com/patchloop/patchloop/internal/platform"
)

func main() {
	cleanupOldSelf()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// cleanupOldSelf removes the "_old" sidecar a prior self-update relaunch
// may have left next to the running executable, before anything else
// touches the target directory.
func cleanupOldSelf() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	if err := platform.Current().CleanupOldSelf(exe); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cleaning up previous executable: %v\n", err)
	}
}
