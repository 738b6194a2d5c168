package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/patchloop/patchloop/internal/manifest"
	"github.com/patchloop/patchloop/internal/platform"
)

func runInfo(cmd *cobra.Command) error {
	fmt.Printf("patchloop %s (%s)\n", version, commit)
	fmt.Printf("manifest schema: %s\n", manifest.FileName)

	dir, err := selfDir()
	if err != nil {
		detail("could not determine installed directory: %v", err)
		return nil
	}

	m, err := manifest.Read(filepath.Join(dir, manifest.FileName))
	if err != nil {
		detail("no manifest found in %s", dir)
		return nil
	}

	fmt.Printf("installed manifest version: %s (%d pinned files)\n", m.Version.Original(), len(m.Files))
	if m.MinVersion != nil {
		fmt.Printf("minimum version: %s\n", m.MinVersion.Original())
	}

	if m.AppExe != "" {
		if v, err := platform.Current().ReadExeVersion(filepath.Join(dir, m.AppExe)); err == nil {
			fmt.Printf("installed app version: %s\n", v)
		} else {
			detail("could not read version from %s: %v", m.AppExe, err)
		}
	}

	return nil
}
