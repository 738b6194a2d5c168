package cmd

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/patchloop/patchloop/internal/manifest"
)

var (
	generateAppExe     string
	generateMinVersion string
)

var generateCmd = &cobra.Command{
	Use:   "generate <dir>",
	Short: "Write manifest.json for a source directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateAppExe, "app_exe", "", "application executable, relative to <dir>")
	generateCmd.Flags().StringVar(&generateMinVersion, "min_version", "", "minimum version below which the update is mandatory")
	_ = generateCmd.MarkFlagRequired("app_exe")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	dir := args[0]

	var minVersion *semver.Version
	if generateMinVersion != "" {
		v, err := semver.NewVersion(generateMinVersion)
		if err != nil {
			return fmt.Errorf("min_version %q: %w", generateMinVersion, err)
		}
		minVersion = v
	}

	m, err := manifest.Generate(dir, generateAppExe, minVersion, nil)
	if err != nil {
		errorf("generate failed: %v", err)
		return err
	}

	info("Wrote %s for version %s (%d files)", manifest.FileName, m.Version.Original(), len(m.Files))
	return nil
}
